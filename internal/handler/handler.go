package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/attribution"
	"github.com/krlenix/dermotin-sub001/internal/consent"
	"github.com/krlenix/dermotin-sub001/internal/domain"
	"github.com/krlenix/dermotin-sub001/internal/dto"
	"github.com/krlenix/dermotin-sub001/internal/service"
)

type Handler struct {
	relayService  service.RelayServicer
	router        *gin.Engine
	secureCookies bool
	log           *zap.Logger
}

func NewHandler(relayService service.RelayServicer, secureCookies bool, log *zap.Logger) *Handler {
	h := &Handler{
		relayService:  relayService,
		router:        gin.New(),
		secureCookies: secureCookies,
		log:           log,
	}

	h.router.Use(gin.Recovery(), RequestID(), RequestLogger(log))
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.POST("/track", h.trackEvent)
	h.router.POST("/consent", h.saveConsent)
}

// healthCheck handles health check requests
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// trackEvent handles POST /track
// @Summary Relay a tracking event
// @Description Relay one conversion event to the ad platform's server API
// @Tags tracking
// @Accept json
// @Produce json
// @Param event body dto.TrackEventRequest true "Event description"
// @Success 200 {object} dto.TrackEventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /track [post]
func (h *Handler) trackEvent(c *gin.Context) {
	var req dto.TrackEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid track request",
			zap.Error(err),
			zap.String("event_type", req.EventType))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	netCtx := networkContext(c)
	store := attribution.NewCookieStore(c.Request, c.Writer, h.secureCookies)

	result, err := h.relayService.Relay(c.Request.Context(), &req, netCtx, store)
	if err != nil {
		h.log.Warn("Rejected track request",
			zap.Error(err),
			zap.String("event_type", req.EventType),
			zap.String("country_code", req.CountryCode))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	// Expected non-deliveries (consent denied, market not configured) are
	// successful HTTP exchanges; tracking is best-effort and the caller is
	// never handed a failure it could surface to the visitor.
	c.JSON(http.StatusOK, dto.TrackEventResponse{
		Success: result.Delivered,
		EventID: result.EventID,
		Error:   string(result.ErrorKind),
	})
}

// saveConsent handles POST /consent
// @Summary Store the visitor's consent preference
// @Description Persist the consent categories as the visitor's durable preference
// @Tags consent
// @Accept json
// @Produce json
// @Param consent body domain.ConsentState true "Consent categories"
// @Success 200 {object} domain.ConsentState
// @Failure 400 {object} dto.ErrorResponse
// @Router /consent [post]
func (h *Handler) saveConsent(c *gin.Context) {
	var state domain.ConsentState

	if err := c.ShouldBindJSON(&state); err != nil {
		h.log.Warn("Invalid consent request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	store := attribution.NewCookieStore(c.Request, c.Writer, h.secureCookies)
	gate := consent.NewGatekeeper(store, h.log)
	if err := gate.Save(state); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	h.log.Info("Consent preference stored",
		zap.Bool("marketing", state.Marketing),
		zap.Bool("analytics", state.Analytics))

	state.Necessary = true
	c.JSON(http.StatusOK, state)
}

// networkContext extracts the caller's network identity from the request:
// first forwarded-for hop, then the real-ip header, then the transport
// address.
func networkContext(c *gin.Context) domain.NetworkContext {
	ip := ""
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip == "" {
		ip = strings.TrimSpace(c.GetHeader("X-Real-IP"))
	}
	if ip == "" {
		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = c.Request.RemoteAddr
		}
	}

	return domain.NetworkContext{
		IP:        ip,
		UserAgent: c.GetHeader("User-Agent"),
		Referer:   c.GetHeader("Referer"),
	}
}
