package api

import (
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/eshop-ordering/pkg/app"
	"github.com/ghuser/eshop-ordering/pkg/auth"
	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/services/ordering/application/handlers"
	appsvcs "github.com/ghuser/eshop-ordering/services/ordering/application/services"
)

// OrderRoutes registers ordering endpoints on the provided chi router.
// Every route requires an authenticated buyer session.
func OrderRoutes(r chi.Router, a *app.Application) error {
	svcs, err := appsvcs.New(a)
	if err != nil {
		return fmt.Errorf("order routes: %w", err)
	}
	isProduction := a.Config.Environment == config.EnvProduction

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(a.SessionStore, a.Logger))
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handlers.NewPostOrderHandler(svcs, isProduction).Execute)
		})
	})
	return nil
}
