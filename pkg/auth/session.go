// Package auth resolves the buyer behind a request from a Redis-backed session.
//
// The cookie carries only an encrypted, signed session id. Keys come from
// SESSION_AUTH_KEY (HMAC, 32 or 64 bytes) and SESSION_ENCRYPTION_KEY (AES,
// 16, 24 or 32 bytes); generate them with `openssl rand -base64 32`.
package auth

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/gob"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "eshop:session:"

	// sessionMaxAge is a sliding window: every authenticated request pushes
	// the Redis expiry forward.
	sessionMaxAge = 24 * time.Hour
)

// RedisStore implements sessions.Store with the values held in Redis under
// "eshop:session:<id>". Values are gob-encoded plain strings, so nothing needs
// gob.Register. The key expiry follows MaxAge and is refreshed on every load.
type RedisStore struct {
	client  *redis.Client
	codecs  []securecookie.Codec
	options *sessions.Options
}

// NewSessionStore builds a store over client. secureCookie restricts the
// cookie to HTTPS and should be false only for local development.
func NewSessionStore(client *redis.Client, authKey, encryptionKey []byte, secureCookie bool) *RedisStore {
	return &RedisStore{
		client: client,
		codecs: securecookie.CodecsFromPairs(authKey, encryptionKey),
		options: &sessions.Options{
			Path:     "/",
			MaxAge:   int(sessionMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

// Get returns the request's session, cached per request by gorilla's registry.
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie. A missing, forged or
// expired cookie, or a session evicted from Redis, yields a fresh empty
// session rather than an error; RequireAuth then rejects it.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.options
	session.Options = &opts
	session.IsNew = true

	id, ok := s.sessionID(r, name)
	if !ok {
		return session, nil
	}
	session.ID = id
	if err := s.load(r.Context(), session); err != nil {
		session.ID = ""
		return session, nil
	}
	session.IsNew = false
	return session, nil
}

func (s *RedisStore) sessionID(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		return "", false
	}
	return id, true
}

// Save writes the session to Redis and sets the encrypted cookie. A negative
// MaxAge logs the buyer out: the Redis key is removed and the cookie cleared.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		return s.destroy(r.Context(), w, session)
	}

	if session.ID == "" {
		session.ID = newSessionID()
	}
	if err := s.save(r.Context(), session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

func (s *RedisStore) destroy(ctx context.Context, w http.ResponseWriter, session *sessions.Session) error {
	http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
	if session.ID == "" {
		return nil
	}
	if err := s.client.Del(ctx, redisKey(session.ID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func newSessionID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}

func redisKey(id string) string { return sessionKeyPrefix + id }

func (s *RedisStore) save(ctx context.Context, session *sessions.Session) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(session.Values); err != nil {
		return fmt.Errorf("encode session values: %w", err)
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if err := s.client.Set(ctx, redisKey(session.ID), buf.Bytes(), ttl).Err(); err != nil {
		return fmt.Errorf("set session in redis: %w", err)
	}
	return nil
}

// load reads the session values and pushes the key's expiry forward.
func (s *RedisStore) load(ctx context.Context, session *sessions.Session) error {
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	data, err := s.client.GetEx(ctx, redisKey(session.ID), ttl).Bytes()
	if err != nil {
		return fmt.Errorf("get session from redis: %w", err)
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(&session.Values)
}
