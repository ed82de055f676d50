package gateway

// Route patterns for the gateway HTTP surface.
const (
	routeWithdrawals   = "/v1/withdrawals"
	routeCooldown      = "/v1/cooldown"
	routeBonus         = "/v1/bonus"
	routeBonusRefresh  = "/v1/bonus/refresh"
	routePlatformStart = "/v1/platform/day-start"
)

// Route names for mux URL building.
const (
	routeNameWithdrawals   = "gateway_withdrawals"
	routeNameCooldown      = "gateway_cooldown"
	routeNameBonus         = "gateway_bonus"
	routeNameBonusRefresh  = "gateway_bonus_refresh"
	routeNamePlatformStart = "gateway_platform_day_start"
)
