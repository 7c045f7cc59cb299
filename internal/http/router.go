package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/health"
	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/transaction"
	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/webhook"
)

func New(
	webhooksV1 *webhook.Handler,
	transactionsV1 *transaction.Handler,
	healthH *health.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	healthH.Routes(router)

	router.Route("/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			webhooksV1.Routes(r)
		})

		r.Route("/transactions", transactionsV1.Routes)
	})

	return router
}
