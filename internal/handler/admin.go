package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/catalog"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/order"
)

type DashboardOverview struct {
	Revenue   float64 `json:"revenue"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
	LowStock  int     `json:"lowStock"`
}

type DashboardResponse struct {
	Overview DashboardOverview `json:"overview"`
}

type AdminHandler struct {
	orders   order.Service
	products catalog.Service
}

func NewAdminHandler(orders order.Service, products catalog.Service) *AdminHandler {
	return &AdminHandler{orders: orders, products: products}
}

func (h *AdminHandler) RegisterRoutes(router chi.Router, admin func(http.Handler) http.Handler) {
	router.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/admin/dashboard", h.handleDashboard)
		r.Get("/analytics/summary", h.handleAnalyticsSummary)
	})

	// Users are managed by the separate user service.
	router.HandleFunc("/users", notImplemented)
	router.HandleFunc("/users/*", notImplemented)
	router.HandleFunc("/admin/*", notImplemented)
	router.HandleFunc("/analytics/*", notImplemented)
}

func (h *AdminHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var (
		overview *order.Overview
		lowStock int
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		overview, err = h.orders.Overview(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		lowStock, err = h.products.CountLowStock(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Failed to build admin dashboard")
		respondWithError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	respondWithJSON(w, http.StatusOK, DashboardResponse{Overview: DashboardOverview{
		Revenue:   overview.Revenue,
		Orders:    overview.Orders,
		Customers: overview.Customers,
		LowStock:  lowStock,
	}})
}

func (h *AdminHandler) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.orders.Analytics(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build analytics summary")
		respondWithError(w, http.StatusInternalServerError, "Failed to load analytics")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
