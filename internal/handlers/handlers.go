// Package handlers exposes the orchestration engine over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/quorumai/quorum/internal/ensemble"
	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/prompt"
	"github.com/quorumai/quorum/internal/provider"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ChatRequest struct {
	SessionID         string   `json:"session_id"`
	PersonaID         string   `json:"persona_id"`
	Message           string   `json:"message" binding:"required"`
	UseAllProviders   bool     `json:"use_all_providers"`
	SelectedProviders []string `json:"selected_providers"`
	MaxTokens         int      `json:"max_tokens"`
	Temperature       float64  `json:"temperature"`
}

type SentimentRequest struct {
	Text string `json:"text" binding:"required"`
}

type Handler struct {
	orchestrator *ensemble.Orchestrator
	registry     *provider.Registry
	gatherer     prometheus.Gatherer
	log          *logrus.Logger
}

func New(orchestrator *ensemble.Orchestrator, registry *provider.Registry, gatherer prometheus.Gatherer, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		orchestrator: orchestrator,
		registry:     registry,
		gatherer:     gatherer,
		log:          log,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/chat", h.Chat)
		v1.POST("/sentiment", h.Sentiment)
		v1.GET("/providers", h.Providers)
	}
}

func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request format"})
		return
	}

	result, err := h.orchestrator.Submit(c.Request.Context(), ensemble.SubmitRequest{
		SessionID: req.SessionID,
		PersonaID: req.PersonaID,
		Message:   req.Message,
		Options: models.SubmitOptions{
			UseAllProviders:   req.UseAllProviders,
			SelectedProviders: req.SelectedProviders,
			MaxTokens:         req.MaxTokens,
			Temperature:       req.Temperature,
		},
	})
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Sentiment(c *gin.Context) {
	var req SentimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request format"})
		return
	}

	result, err := h.orchestrator.AnalyzeSentiment(c.Request.Context(), req.Text)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Providers reports which providers are registered and their degradation
// state, for quick operational checks.
func (h *Handler) Providers(c *gin.Context) {
	type providerStatus struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Weight   float64 `json:"weight"`
		Degraded bool    `json:"degraded"`
	}

	profiles := h.registry.Profiles()
	out := make([]providerStatus, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, providerStatus{
			ID:       p.ID,
			Name:     p.Name,
			Weight:   p.Weight,
			Degraded: h.registry.Degraded(p.ID),
		})
	}

	c.JSON(http.StatusOK, gin.H{"providers": out, "count": len(out)})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": h.registry.Len(),
	})
}

func (h *Handler) writeSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ensemble.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ensemble.ErrUnknownProvider), errors.Is(err, prompt.ErrUnknownPersona):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
