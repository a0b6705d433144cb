package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/ghuser/eshop-ordering/pkg/httpx"
	"github.com/ghuser/eshop-ordering/pkg/logger"
)

const (
	sessionName         = "eshop_session"
	sessionBuyerIDKey   = "buyer_id"
	sessionBuyerNameKey = "buyer_name"
)

// RequireAuth answers 401 unless the session cookie names a buyer, and
// otherwise hands the request on with that Buyer in its context.
func RequireAuth(store sessions.Store, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buyer, err := buyerFromSession(store, r)
			if err != nil {
				log.WarnContext(r.Context(), "request not authenticated", "error", err)
				httpx.JSONError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithBuyer(r.Context(), buyer)))
		})
	}
}

func buyerFromSession(store sessions.Store, r *http.Request) (Buyer, error) {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return Buyer{}, fmt.Errorf("read session: %w", err)
	}
	id, ok := session.Values[sessionBuyerIDKey].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return Buyer{}, errors.New("session has no buyer id")
	}
	name, _ := session.Values[sessionBuyerNameKey].(string)
	return Buyer{ID: id, Name: name}, nil
}

// SaveBuyer stores buyer in the request's session and writes the session cookie.
// The identity provider calls this after a successful sign-in.
func SaveBuyer(store sessions.Store, w http.ResponseWriter, r *http.Request, buyer Buyer) error {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return err
	}
	session.Values[sessionBuyerIDKey] = buyer.ID
	session.Values[sessionBuyerNameKey] = buyer.Name
	return session.Save(r, w)
}
