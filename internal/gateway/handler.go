package gateway

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizmatters/warm-ranker/internal/models"
	"github.com/bizmatters/warm-ranker/internal/ranking"
)

// Ranker runs the ranking pipeline for one request
type Ranker interface {
	Rank(w http.ResponseWriter, r *http.Request) (json.RawMessage, error)
	Ready() error
}

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	ranker Ranker
}

// NewHandler creates a new gateway handler
func NewHandler(ranker Ranker) *Handler {
	return &Handler{ranker: ranker}
}

// RegisterRoutes mounts the API on router. Wrong verbs on known paths get a JSON 405.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(h.MethodNotAllowed)
	router.NoRoute(h.NotFound)

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	api := router.Group("/api")
	api.POST("/rank", h.Rank)
	api.GET("/health", h.Health)
}

// Rank godoc
// @Summary Rank contacts against an idea
// @Description Uploads a contact export and an idea, runs the external scorer and returns its JSON output verbatim
// @Tags ranking
// @Accept multipart/form-data
// @Produce json
// @Param idea formData string true "Idea the contacts are ranked against"
// @Param csv formData file true "Tabular contact export"
// @Success 200 {array} models.RankedRecord
// @Failure 400 {object} models.ErrorResponse
// @Failure 405 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/rank [post]
func (h *Handler) Rank(c *gin.Context) {
	ranked, err := h.ranker.Rank(c.Writer, c.Request)
	if err != nil {
		kind := ranking.KindOf(err)
		c.Error(err)
		c.JSON(StatusFor(kind), models.ErrorResponse{Error: err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", ranked)
}

// Root godoc
// @Summary Service banner
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router / [get]
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", Message: "Warm Ranker API is running"})
}

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "healthy"})
}

// Ready godoc
// @Summary Readiness probe
// @Description Ready when the artifact directory is writable and a scorer executable resolves
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /ready [get]
func (h *Handler) Ready(c *gin.Context) {
	if err := h.ranker.Ready(); err != nil {
		log.Printf(`{"level":"warn","message":"Readiness check failed","error":%q}`, err.Error())
		c.JSON(http.StatusServiceUnavailable, models.HealthResponse{Status: "not ready", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ready"})
}

// MethodNotAllowed answers requests that use the wrong verb on a known path
func (h *Handler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Error: "method not allowed"})
}

// NotFound answers requests for unknown paths
func (h *Handler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
}

// StatusFor maps a pipeline failure kind to its HTTP status
func StatusFor(kind ranking.Kind) int {
	switch kind {
	case ranking.KindValidation:
		return http.StatusBadRequest
	case ranking.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
