package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AuthorityHandler exposes a scoring authority over REST so remote attempt
// screens can use it as their backend.
type AuthorityHandler struct {
	backend app.Backend
	logger  *slog.Logger
}

func NewAuthorityHandler(backend app.Backend, logger *slog.Logger) *AuthorityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorityHandler{backend: backend, logger: logger.With("component", "authority_api")}
}

// RegisterRoutes mounts the authority API under /api.
func (h *AuthorityHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	{
		quizzes := api.Group("/quizzes")
		quizzes.GET("/:id/overview", h.Overview)
		quizzes.POST("/:id/attempts", h.CreateAttempt)

		attempts := api.Group("/attempts")
		attempts.POST("/:id/submit", h.Submit)
		attempts.GET("/:id/replay", h.Replay)
	}
}

func (h *AuthorityHandler) Overview(c *gin.Context) {
	ov, err := h.backend.Overview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h *AuthorityHandler) CreateAttempt(c *gin.Context) {
	ticket, err := h.backend.CreateAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (h *AuthorityHandler) Submit(c *gin.Context) {
	var req codec.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Code:    "invalid_payload",
			Details: err.Error(),
		})
		return
	}
	req.AttemptID = c.Param("id")

	verdict, err := h.backend.SubmitAttempt(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (h *AuthorityHandler) Replay(c *gin.Context) {
	replay, err := h.backend.ReplayAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, replay)
}

func (h *AuthorityHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAttemptLimitExceeded), errors.Is(err, domain.ErrAttemptAlreadySubmitted):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrShapeMismatch):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("authority request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Message: err.Error(), Code: domain.ErrorCode(err)})
}

// RequestLogger logs each request with slog.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"remote_addr", c.ClientIP(),
		)
	}
}

// NewRouter builds the gin engine serving health, the websocket screen
// endpoint and, when authority is non-nil, the authority API.
func NewRouter(ws *WSHandler, authority *AuthorityHandler, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/ws", gin.WrapF(ws.ServeWS))
	if authority != nil {
		authority.RegisterRoutes(router)
	}
	return router
}
