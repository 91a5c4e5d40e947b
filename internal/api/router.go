// Package api assembles the HTTP routes of the procurement server.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"seaprocure/internal/handlers/admin"
	"seaprocure/internal/handlers/procurement"
	"seaprocure/internal/models"
	"seaprocure/internal/response"
	"seaprocure/internal/server"
)

// NewRouter returns the server's root handler. Every portal gets the same
// read routes under /api/v1/{portal}; mutations are only mounted on the
// portal that owns them.
func NewRouter(app *server.App) http.Handler {
	p := procurement.New(app)
	a := admin.New(app)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(server.RequestLogger(app.Logger))
	r.Use(server.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.DB.PingContext(r.Context()); err != nil {
			response.Err(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		response.JSON(w, map[string]interface{}{"status": "ok", "clients": app.Hub.Clients()})
	})
	// The websocket upgrade needs the raw connection, so /ws stays outside gzip.
	r.Handle("/ws", app.Hub)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.RateLimitMiddleware(app.Limiter))
		r.Use(server.GzipMiddleware)
		r.Use(chiMiddleware.Timeout(60 * time.Second))

		r.Post("/auth/login", a.Login)
		r.Post("/auth/refresh", a.Refresh)
		r.Post("/auth/logout", a.Logout)

		for _, portal := range models.AllPortals {
			r.Route("/"+portal, func(r chi.Router) {
				r.Use(server.RequireAuth(app.Tokens))
				r.Use(server.RequirePortal(portal, true))
				r.Use(server.RequireRBAC(app.Perms))

				r.Get("/rfq", p.ListRFQs)
				r.Get("/rfq/{id}", p.GetRFQ)
				r.Get("/quotation/rfq/{id}", p.GetQuotationForRFQ)
				r.Get("/quotation/{id}/export", p.ExportQuotation)
				r.Get("/banking-details/quotation/{quotationId}", p.GetBankingDetails)
				r.Get("/payment-proof/quotation/{quotationId}", p.GetPaymentProof)
				r.Get("/document/{id}", p.GetDocument)
				if portal != models.PortalCustomer {
					r.Post("/payment-proof/{quotationId}/approve", p.ApprovePayment)
				}

				r.Group(func(r chi.Router) {
					r.Use(server.RequirePortal(portal, false))
					switch portal {
					case models.PortalVendor:
						r.Post("/quotation", p.SubmitQuotation)
						r.Post("/banking-details", p.SubmitBankingDetails)
						r.Post("/payment-proof/{quotationId}/vendor-shipping", p.SubmitVendorShipping)
					case models.PortalCustomer:
						r.Post("/payment-proof", p.UploadPaymentProof)
						r.Post("/payment-proof/{quotationId}/shipping-option", p.SelectShippingOption)
					case models.PortalTech:
						r.Post("/rfq", p.CreateRFQ)
						r.Post("/quotation/{id}/finalize", p.FinalizeQuotation)
						r.Post("/quotation/{id}/reject", p.RejectQuotation)
						r.Get("/roles", a.ListRoles)
						r.Put("/roles/{portal}/{name}", a.SaveRole)
						r.Post("/roles/{portal}/{name}/rename", a.RenameRole)
						r.Delete("/roles/{portal}/{name}", a.DeleteRole)
					}
				})
			})
		}
	})
	return r
}
