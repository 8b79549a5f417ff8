// routes.go - Route table
package api

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the API under /api
func RegisterRoutes(e *echo.Echo, h *Handler, ws *WebSocketHandler) {
	g := e.Group("/api")

	g.GET("/health", h.HandleHealth)

	g.GET("/device", h.HandleGetDevice)
	g.POST("/device/power-on", h.HandlePowerOn)
	g.POST("/device/power-off", h.HandleRequestPowerOff)
	g.POST("/device/power-off/confirm", h.HandleConfirmPowerOff)
	g.POST("/device/lock", h.HandleLock)
	g.GET("/device/telemetry", h.HandleTelemetry)

	g.GET("/logs", h.HandleGetLogs)

	g.GET("/chat", h.HandleGetChat)
	g.POST("/chat", h.HandleChat)
	g.GET("/chat/health", h.HandleChatHealth)

	if ws != nil {
		g.GET("/ws", ws.HandleWebSocket)
	}
}
