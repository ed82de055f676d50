package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds gorilla/mux routes.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeWithdrawals, h.handleWithdraw).Methods(http.MethodPost).Name(routeNameWithdrawals)
	r.HandleFunc(routeCooldown, h.handleCooldown).Methods(http.MethodGet).Name(routeNameCooldown)
	r.HandleFunc(routeBonus, h.handleBonus).Methods(http.MethodGet).Name(routeNameBonus)
	r.HandleFunc(routeBonusRefresh, h.handleBonusRefresh).Methods(http.MethodPost).Name(routeNameBonusRefresh)
	r.HandleFunc(routePlatformStart, h.handleDayStart).Methods(http.MethodGet).Name(routeNamePlatformStart)
}
