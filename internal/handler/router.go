package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/Jar-Mar/tukjaishop-pos/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware POS-сервера Tukjai.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.CORS)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/goods", func(r chi.Router) {
			r.Post("/", h.CreateGoods)
			r.Get("/barcode/{code}", h.GetGoodsByBarcode)
		})

		r.Route("/members", func(r chi.Router) {
			r.Post("/", h.RegisterMember)
			r.Get("/{phone}", h.GetMember)
			r.Put("/{phone}/points", h.UpdateMemberPoints)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.SubmitOrder)
			r.Get("/", h.ListOrders)
			r.Get("/report", h.GetSalesReport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
