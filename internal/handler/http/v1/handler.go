package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/config"
	"github.com/shenikar/sos_alert_system/internal/dashboard"
	"github.com/shenikar/sos_alert_system/internal/location"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/service"
	"github.com/sirupsen/logrus"
)

// Sessions - сессии представления ответчика
type Sessions interface {
	Open() (dashboard.View, error)
	View(id uuid.UUID) (dashboard.View, error)
	Close(id uuid.UUID) error
	Len() int
}

// DeviceLocation - фоновый замер координат устройства
type DeviceLocation interface {
	Status(ctx context.Context) (location.State, error)
	Refresh(ctx context.Context) (location.State, error)
}

type Handler struct {
	alertService service.AlertService
	sessions     Sessions
	device       DeviceLocation
	logger       *logrus.Logger
	validate     *validator.Validate
	cfg          *config.Config
}

func NewHandler(alertService service.AlertService, sessions Sessions, device DeviceLocation, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		alertService: alertService,
		sessions:     sessions,
		device:       device,
		logger:       logger,
		validate:     validator.New(),
		cfg:          cfg,
	}
}

// @Summary Create a new alert
// @Description Raise an emergency alert. Missing location falls back to the default coordinate with a warning.
// @Tags Alerts
// @Accept json
// @Produce json
// @Param alert body CreateAlertRequest true "Alert creation request"
// @Success 201 {object} CreateAlertResponse
// @Failure 400 {object} map[string]string "Invalid request body, validation error or unknown category"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts [post]
func (h *Handler) createAlert(c *gin.Context) {
	var input CreateAlertRequest
	log := h.logger.WithField("method", "createAlert")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creation, err := h.alertService.CreateAlert(c.Request.Context(), DTOToCreateAlertInput(input))
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, CreationToResponse(creation))
}

// @Summary Get the responder queue
// @Description Full snapshot of the responder queue, newest first. Requires API key.
// @Tags Alerts
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Status filter" Enums(all, active, resolved, cancelled)
// @Success 200 {array} AlertResponse
// @Failure 400 {object} map[string]string "Invalid status filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts [get]
func (h *Handler) listAlerts(c *gin.Context) {
	log := h.logger.WithField("method", "listAlerts")
	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}

	alerts, err := h.alertService.ListResponderQueue(c.Request.Context(), status)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToAlertResponses(alerts))
}

// @Summary Get alert by ID
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 404 {object} map[string]string "Alert not found"
// @Router /alerts/{id} [get]
func (h *Handler) getAlert(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid alert ID")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getAlert").WithField("id", id)

	alert, err := h.alertService.GetAlert(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToAlertResponse(alert))
}

// @Summary Resolve an alert
// @Description Move an active alert to resolved. Requires API key.
// @Tags Alerts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Failure 409 {object} map[string]string "Alert is already resolved or cancelled"
// @Router /alerts/{id}/resolve [post]
func (h *Handler) resolveAlert(c *gin.Context) {
	h.changeStatus(c, "resolveAlert", h.alertService.ResolveAlert)
}

// @Summary Cancel an alert
// @Description Move an active alert to cancelled. Requires API key.
// @Tags Alerts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Failure 409 {object} map[string]string "Alert is already resolved or cancelled"
// @Router /alerts/{id}/cancel [post]
func (h *Handler) cancelAlert(c *gin.Context) {
	h.changeStatus(c, "cancelAlert", h.alertService.CancelAlert)
}

func (h *Handler) changeStatus(c *gin.Context, method string, apply func(context.Context, uuid.UUID) (*models.Alert, error)) {
	id, ok := parseID(c, "id", "invalid alert ID")
	if !ok {
		return
	}
	log := h.logger.WithField("method", method).WithField("id", id)

	alert, err := apply(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToAlertResponse(alert))
}

// @Summary Get reporter history
// @Description Alerts raised by one reporter, newest first.
// @Tags Reporters
// @Produce json
// @Param id path string true "Reporter ID"
// @Param status query string false "Status filter" Enums(all, active, resolved, cancelled)
// @Success 200 {array} AlertResponse
// @Failure 400 {object} map[string]string "Invalid status filter"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reporters/{id}/alerts [get]
func (h *Handler) listReporterAlerts(c *gin.Context) {
	reporterID := c.Param("id")
	log := h.logger.WithField("method", "listReporterAlerts").WithField("reporter_id", reporterID)
	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}

	alerts, err := h.alertService.ListReporterHistory(c.Request.Context(), reporterID, status)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToAlertResponses(alerts))
}

// @Summary Reconcile reporter history
// @Description Rebuild a stale reporter history from the responder queue.
// @Tags Reporters
// @Param id path string true "Reporter ID"
// @Success 204 "No Content"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reporters/{id}/reconcile [post]
func (h *Handler) reconcileReporter(c *gin.Context) {
	reporterID := c.Param("id")
	log := h.logger.WithField("method", "reconcileReporter").WithField("reporter_id", reporterID)

	if err := h.alertService.ReconcileHistory(c.Request.Context(), reporterID); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Add an emergency contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Reporter ID"
// @Param contact body ContactRequest true "Contact"
// @Success 201 {object} ContactResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reporters/{id}/contacts [post]
func (h *Handler) addContact(c *gin.Context) {
	var input ContactRequest
	reporterID := c.Param("id")
	log := h.logger.WithField("method", "addContact").WithField("reporter_id", reporterID)

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := DTOToContactModel(reporterID, input)
	if err := h.alertService.AddContact(c.Request.Context(), contact); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToContactResponse(contact))
}

// @Summary List emergency contacts
// @Tags Contacts
// @Produce json
// @Param id path string true "Reporter ID"
// @Success 200 {array} ContactResponse
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reporters/{id}/contacts [get]
func (h *Handler) listContacts(c *gin.Context) {
	reporterID := c.Param("id")
	log := h.logger.WithField("method", "listContacts").WithField("reporter_id", reporterID)

	contacts, err := h.alertService.ListContacts(c.Request.Context(), reporterID)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToContactResponses(contacts))
}

// @Summary Delete an emergency contact
// @Tags Contacts
// @Param id path string true "Reporter ID"
// @Param contactId path string true "Contact ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid contact ID"
// @Failure 404 {object} map[string]string "Contact not found"
// @Router /reporters/{id}/contacts/{contactId} [delete]
func (h *Handler) deleteContact(c *gin.Context) {
	reporterID := c.Param("id")
	id, ok := parseID(c, "contactId", "invalid contact ID")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "deleteContact").WithField("contact_id", id)

	if err := h.alertService.RemoveContact(c.Request.Context(), reporterID, id); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Update an emergency contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Reporter ID"
// @Param contactId path string true "Contact ID"
// @Param contact body ContactRequest true "Contact data"
// @Success 200 {object} ContactResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Contact not found"
// @Router /reporters/{id}/contacts/{contactId} [put]
func (h *Handler) updateContact(c *gin.Context) {
	reporterID := c.Param("id")
	id, ok := parseID(c, "contactId", "invalid contact ID")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "updateContact").WithField("contact_id", id)

	var input ContactRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := DTOToContactModel(reporterID, input)
	contact.ID = id
	if err := h.alertService.UpdateContact(c.Request.Context(), contact); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToContactResponse(contact))
}

// @Summary List alert categories
// @Tags Alerts
// @Produce json
// @Success 200 {array} CategoryResponse
// @Router /categories [get]
func (h *Handler) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, CategoriesToResponse())
}

// @Summary Open a responder session
// @Description Start polling the responder queue. The first poll happens immediately. Requires API key.
// @Tags Responder
// @Produce json
// @Security ApiKeyAuth
// @Success 201 {object} SessionResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /responder/sessions [post]
func (h *Handler) openSession(c *gin.Context) {
	log := h.logger.WithField("method", "openSession")

	view, err := h.sessions.Open()
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ViewToSessionResponse(view, ""))
}

// @Summary Get a responder session view
// @Description Latest polled snapshot. Changes become visible on the next poll. Requires API key.
// @Tags Responder
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Session ID"
// @Param status query string false "Status filter" Enums(all, active, resolved, cancelled)
// @Success 200 {object} SessionResponse
// @Failure 400 {object} map[string]string "Invalid session ID or status filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Router /responder/sessions/{id} [get]
func (h *Handler) getSession(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid session ID")
	if !ok {
		return
	}
	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getSession").WithField("session_id", id)

	view, err := h.sessions.View(id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ViewToSessionResponse(view, status))
}

// @Summary Close a responder session
// @Tags Responder
// @Security ApiKeyAuth
// @Param id path string true "Session ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid session ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Router /responder/sessions/{id} [delete]
func (h *Handler) closeSession(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid session ID")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "closeSession").WithField("session_id", id)

	if err := h.sessions.Close(id); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get device location
// @Description Last sampled device location, accuracy class, warning and cached history.
// @Tags Location
// @Produce json
// @Success 200 {object} location.State
// @Failure 503 {object} map[string]string "Location sampling is disabled"
// @Router /devices/location [get]
func (h *Handler) getDeviceLocation(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "location sampling is disabled"})
		return
	}
	h.deviceState(c, "getDeviceLocation", h.device.Status)
}

// @Summary Refresh device location
// @Description Sample the location provider now.
// @Tags Location
// @Produce json
// @Success 200 {object} location.State
// @Failure 503 {object} map[string]string "Location sampling is disabled"
// @Router /devices/location/refresh [post]
func (h *Handler) refreshDeviceLocation(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "location sampling is disabled"})
		return
	}
	h.deviceState(c, "refreshDeviceLocation", h.device.Refresh)
}

func (h *Handler) deviceState(c *gin.Context, method string, read func(context.Context) (location.State, error)) {
	log := h.logger.WithField("method", method)
	state, err := read(c.Request.Context())
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"store":    h.cfg.StoreBackend,
		"sessions": h.sessions.Len(),
	})
}

// writeError переводит доменную ошибку в HTTP статус
func (h *Handler) writeError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownCategory):
		log.WithError(err).Warn("Unknown alert category")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
	case errors.Is(err, models.ErrAlertNotFound):
		log.WithError(err).Warn("Alert not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, models.ErrContactNotFound):
		log.WithError(err).Warn("Contact not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
	case errors.Is(err, dashboard.ErrSessionNotFound):
		log.WithError(err).Warn("Session not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, models.ErrInvalidTransition):
		log.WithError(err).Warn("Status change rejected")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrStaleVersion):
		log.WithError(err).Warn("Concurrent status change")
		c.JSON(http.StatusConflict, gin.H{"error": "alert was changed concurrently"})
	default:
		log.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func parseID(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return uuid.Nil, false
	}
	return id, true
}

// parseStatusFilter читает ?status=, значения all и пустая строка означают все тревоги
func parseStatusFilter(c *gin.Context) (models.AlertStatus, bool) {
	raw := c.DefaultQuery("status", "all")
	if raw == "all" || raw == "" {
		return "", true
	}
	status, ok := models.ParseStatus(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return "", false
	}
	return status, true
}
