package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-lpr-service/internal/auth"
	"parking-lpr-service/internal/config"
	"parking-lpr-service/internal/domain/parking"
	"parking-lpr-service/internal/repository"
	"parking-lpr-service/internal/service"
)

type Handler struct {
	sessions *service.SessionService
	tariffs  *config.TariffHolder
	jwt      *auth.JWTService
	log      zerolog.Logger
}

func NewHandler(
	sessions *service.SessionService,
	tariffs *config.TariffHolder,
	jwt *auth.JWTService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		tariffs:  tariffs,
		jwt:      jwt,
		log:      log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.POST("/login", h.login)

	// Everything behind the operator login, matching the kiosk flow.
	api := r.Group("/api/v1")
	api.Use(authMiddleware)
	{
		api.POST("/observations", h.createObservation)
		api.GET("/events", h.listEvents)
		api.GET("/summary", h.dailySummary)
		api.GET("/tariffs", h.getTariffs)
	}

	admin := r.Group("/api/v1")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.PUT("/tariffs", h.updateTariffs)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	token, err := h.jwt.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("invalid username or password"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) createObservation(c *gin.Context) {
	var payload parking.ObservationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if payload.ObservedAt.IsZero() {
		payload.ObservedAt = time.Now()
	}

	result, err := h.sessions.ProcessObservation(c.Request.Context(), payload)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

func (h *Handler) listEvents(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.sessions.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := make([]eventInfo, 0, len(events))
	for _, e := range events {
		out = append(out, toEventInfo(e))
	}
	c.JSON(http.StatusOK, successResponse(out))
}

func (h *Handler) dailySummary(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))

	summary, err := h.sessions.DailySummary(c.Request.Context(), date)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(summary))
}

func (h *Handler) getTariffs(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.tariffs.Get()))
}

func (h *Handler) updateTariffs(c *gin.Context) {
	var table parking.RateTable
	if err := c.ShouldBindJSON(&table); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if err := h.tariffs.Set(table); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.tariffs.Get()))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnrecognizedPlate):
		// Nothing was recorded; the operator should capture again.
		c.JSON(http.StatusUnprocessableEntity, errorResponse("plate not recognized, capture again"))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, repository.ErrStorage):
		// Data-loss-risk condition, kept distinct from business warnings.
		h.log.Error().Err(err).Msg("ledger storage failure")
		c.JSON(http.StatusServiceUnavailable, errorResponse("ledger storage failure"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

type eventInfo struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	DateKey        string    `json:"date_key"`
	Action         string    `json:"action"`
	VehicleClass   string    `json:"vehicle_class"`
	PlateCanonical string    `json:"plate_canonical"`
	PlateDisplay   string    `json:"plate_display"`
	Fee            int64     `json:"fee"`
	ImagePath      string    `json:"image_path,omitempty"`
	CropPath       string    `json:"crop_path,omitempty"`
}

func toEventInfo(e *parking.Event) eventInfo {
	return eventInfo{
		ID:             e.ID,
		Timestamp:      e.Timestamp,
		DateKey:        e.DateKey,
		Action:         string(e.Action),
		VehicleClass:   string(e.VehicleClass),
		PlateCanonical: e.PlateCanonical,
		PlateDisplay:   e.PlateDisplay,
		Fee:            e.Fee,
		ImagePath:      e.ImagePath,
		CropPath:       e.CropPath,
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
