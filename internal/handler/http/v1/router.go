package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1.
// Маршруты ответчика и смена статуса тревог требуют API ключ, если ключи заданы в конфигурации.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	protected := []gin.HandlerFunc{}
	if len(h.cfg.APIKeys) > 0 {
		protected = append(protected, APIKeyAuthMiddleware(h.cfg.APIKeys, h.logger))
	}

	// Тревоги
	alerts := api.Group("/alerts")
	{
		alerts.POST("", h.createAlert)
		alerts.GET("/:id", h.getAlert)

		responder := alerts.Group("", protected...)
		responder.GET("", h.listAlerts)
		responder.POST("/:id/resolve", h.resolveAlert)
		responder.POST("/:id/cancel", h.cancelAlert)
	}

	// История и контакты заявителя
	reporters := api.Group("/reporters/:id")
	{
		reporters.GET("/alerts", h.listReporterAlerts)
		reporters.POST("/reconcile", h.reconcileReporter)
		reporters.GET("/contacts", h.listContacts)
		reporters.POST("/contacts", h.addContact)
		reporters.PUT("/contacts/:contactId", h.updateContact)
		reporters.DELETE("/contacts/:contactId", h.deleteContact)
	}

	// Сессии представления ответчика
	sessions := api.Group("/responder/sessions", protected...)
	{
		sessions.POST("", h.openSession)
		sessions.GET("/:id", h.getSession)
		sessions.DELETE("/:id", h.closeSession)
	}

	api.GET("/categories", h.listCategories)

	// Геопозиция устройства
	api.GET("/devices/location", h.getDeviceLocation)
	api.POST("/devices/location/refresh", h.refreshDeviceLocation)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
