package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/foodshare/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
// idempotency wraps the non-repeatable POSTs (reservations, redemptions);
// pass nil to disable it.
func MountRoutes(r chi.Router, h *Handlers, idempotency func(http.Handler) http.Handler) {
	if idempotency == nil {
		idempotency = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Public browsing
		r.Get("/donations", h.ListDonations)
		r.Get("/donations/{id}", handleGet(h.Donations.Get, "donation not found"))
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/shops/{shop}", h.GetShop)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			// Profiles
			r.Post("/profiles", h.CreateProfile)
			r.Get("/profiles/{id}", h.GetProfile)
			r.Get("/me", h.GetMe)
			r.Put("/me", h.UpdateMe)
			r.Post("/me/avatar", h.UploadAvatar)
			r.Get("/me/donations", handleListForUser(h.Donations.ListByLister))
			r.Get("/me/orders", handleListForUser(h.Orders.ListByReceiver))
			r.Get("/me/transactions", h.ListTransactions)

			// Donations
			r.Post("/donations", handleCreateForUser(maxRequestBodySize, h.Donations.Create, "donation not found"))
			r.Put("/donations/{id}", handleUpdateOwned(maxRequestBodySize, h.Donations.Update, "donation not found"))
			r.Delete("/donations/{id}", handleDeleteOwned(h.Donations.Delete, "donation not found"))
			r.Post("/donations/{id}/image", h.AttachDonationImage)

			// Orders
			r.With(idempotency).Post("/orders", handleCreateForUser(maxRequestBodySize, h.Orders.Reserve, "donation not found"))
			r.Get("/orders/{id}", handleGetForUser(h.Orders.Get, "order not found"))

			// Rewards
			r.With(idempotency).Post("/shop/redeem", h.Redeem)

			// Uploads
			r.Post("/uploads/{bucket}", h.Upload)
			r.Delete("/uploads/{bucket}/*", h.DeleteUpload)

			// Delivery dashboard
			r.Route("/delivery/sessions", func(r chi.Router) {
				r.Post("/", h.OpenDeliverySession)
				r.Get("/{id}", h.GetDeliverySession)
				r.Put("/{id}/duty", h.SetDuty)
				r.Post("/{id}/offer", h.RespondToOffer)
				r.Post("/{id}/tasks/{taskID}/advance", h.AdvanceTask)
				r.Delete("/{id}", h.CloseDeliverySession)
			})
		})
	})
}
