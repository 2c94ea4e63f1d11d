// Package http exposes the studio control API: destination management,
// layout selection, broadcast lifecycle, overlays, clips and recordings.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studiocast/internal/core/domain"
	"studiocast/internal/core/ports"
	"studiocast/internal/videofx"
	apperrors "studiocast/pkg/errors"
)

// OverlayController is the subset of the compositor the control surface
// drives directly.
type OverlayController interface {
	ShowLowerThird(text string, d time.Duration)
	ShowCaptions(text string, d time.Duration)
	AddChatMessage(msg domain.ChatMessage)
	ClearChatOverlay()
}

// EffectsController applies per-source video effects ahead of
// composition.
type EffectsController interface {
	SetSourceEffect(ctx context.Context, id domain.SourceID, effect videofx.Effect) error
}

type StudioHandler struct {
	studio   ports.StudioService
	overlays OverlayController
	effects  EffectsController
}

func NewStudioHandler(studio ports.StudioService, overlays OverlayController, effects EffectsController) *StudioHandler {
	return &StudioHandler{
		studio:   studio,
		overlays: overlays,
		effects:  effects,
	}
}

func (h *StudioHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/destinations", h.AddDestination)
		api.GET("/destinations", h.ListDestinations)
		api.DELETE("/destinations/:id", h.RemoveDestination)

		api.PUT("/layout", h.SetLayout)
		api.PUT("/sources/:id/effect", h.SetSourceEffect)
		api.GET("/status", h.Status)

		api.POST("/broadcast/golive", h.GoLive)
		api.POST("/broadcast/end", h.EndBroadcast)

		api.POST("/clips", h.CreateClip)
		api.POST("/recordings", h.StartRecording)

		api.POST("/overlays/lower-third", h.ShowLowerThird)
		api.POST("/overlays/captions", h.ShowCaptions)
		api.POST("/overlays/chat", h.AddChatMessage)
		api.DELETE("/overlays/chat", h.ClearChat)
		api.POST("/overlays/clip", h.ShowClipOverlay)
		api.DELETE("/overlays/clip", h.ClearClipOverlay)
	}
}

func (h *StudioHandler) AddDestination(c *gin.Context) {
	var req struct {
		ID        string `json:"id" binding:"required"`
		Platform  string `json:"platform" binding:"required"`
		IngestURL string `json:"ingest_url"`
		StreamKey string `json:"stream_key"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dest := &domain.Destination{
		ID:        domain.DestinationID(req.ID),
		Platform:  domain.Platform(req.Platform),
		IngestURL: req.IngestURL,
		StreamKey: req.StreamKey,
	}
	if err := h.studio.AddDestination(c.Request.Context(), dest); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"destination": dest})
}

func (h *StudioHandler) ListDestinations(c *gin.Context) {
	dests, err := h.studio.ListDestinations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"destinations": dests})
}

func (h *StudioHandler) RemoveDestination(c *gin.Context) {
	id := domain.DestinationID(c.Param("id"))

	if err := h.studio.RemoveDestination(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *StudioHandler) SetLayout(c *gin.Context) {
	var req struct {
		Layout string `json:"layout" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := domain.ParseLayoutID(req.Layout)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.studio.SetLayout(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"layout": req.Layout})
}

func (h *StudioHandler) SetSourceEffect(c *gin.Context) {
	var req struct {
		Kind          string  `json:"kind" binding:"required"`
		KeyColor      string  `json:"key_color"`
		Similarity    float64 `json:"similarity" binding:"min=0,max=1"`
		Smoothness    float64 `json:"smoothness" binding:"min=0,max=1"`
		BlurRadius    int     `json:"blur_radius" binding:"min=0,max=64"`
		BackgroundURL string  `json:"background_url"`
		EdgeSoftness  float64 `json:"edge_softness" binding:"min=0,max=1"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	effect := videofx.Effect{
		Kind:          videofx.EffectKind(req.Kind),
		Similarity:    req.Similarity,
		Smoothness:    req.Smoothness,
		BlurRadius:    req.BlurRadius,
		BackgroundURL: req.BackgroundURL,
		EdgeSoftness:  req.EdgeSoftness,
	}
	if req.KeyColor != "" {
		if _, err := fmt.Sscanf(req.KeyColor, "#%02x%02x%02x",
			&effect.KeyR, &effect.KeyG, &effect.KeyB); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key_color must be #RRGGBB"})
			return
		}
	}

	if err := h.effects.SetSourceEffect(c.Request.Context(), domain.SourceID(c.Param("id")), effect); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"effect": req.Kind})
}

func (h *StudioHandler) GoLive(c *gin.Context) {
	var req struct {
		Title            string   `json:"title"`
		CountdownSeconds int      `json:"countdown_seconds" binding:"min=0,max=60"`
		IntroSourceID    string   `json:"intro_source_id"`
		Destinations     []string `json:"destinations"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := ports.GoLiveOptions{
		Title:            req.Title,
		CountdownSeconds: req.CountdownSeconds,
		IntroSourceID:    domain.SourceID(req.IntroSourceID),
	}
	for _, id := range req.Destinations {
		opts.Destinations = append(opts.Destinations, domain.DestinationID(id))
	}

	result, err := h.studio.GoLive(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"started": result.Started,
		"failed":  failedMap(result),
	})
}

func (h *StudioHandler) EndBroadcast(c *gin.Context) {
	if err := h.studio.EndBroadcast(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *StudioHandler) CreateClip(c *gin.Context) {
	var req struct {
		DurationSeconds int `json:"duration_seconds" binding:"required,min=1,max=300"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clip, err := h.studio.CreateClip(c.Request.Context(), time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"clip": clip})
}

func (h *StudioHandler) StartRecording(c *gin.Context) {
	if err := h.studio.StartRecording(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "recording"})
}

func (h *StudioHandler) Status(c *gin.Context) {
	status, err := h.studio.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *StudioHandler) ShowLowerThird(c *gin.Context) {
	var req struct {
		Text            string `json:"text" binding:"required,max=200"`
		DurationSeconds int    `json:"duration_seconds" binding:"min=0,max=300"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.overlays.ShowLowerThird(req.Text, time.Duration(req.DurationSeconds)*time.Second)
	c.JSON(http.StatusOK, gin.H{"status": "shown"})
}

func (h *StudioHandler) ShowCaptions(c *gin.Context) {
	var req struct {
		Text            string `json:"text" binding:"required,max=500"`
		DurationSeconds int    `json:"duration_seconds" binding:"min=0,max=60"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.overlays.ShowCaptions(req.Text, time.Duration(req.DurationSeconds)*time.Second)
	c.JSON(http.StatusOK, gin.H{"status": "shown"})
}

func (h *StudioHandler) AddChatMessage(c *gin.Context) {
	var req struct {
		Author string `json:"author" binding:"required,max=64"`
		Text   string `json:"text" binding:"required,max=500"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.overlays.AddChatMessage(domain.ChatMessage{
		Author: req.Author,
		Text:   req.Text,
		At:     time.Now(),
	})
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

func (h *StudioHandler) ClearChat(c *gin.Context) {
	h.overlays.ClearChatOverlay()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (h *StudioHandler) ShowClipOverlay(c *gin.Context) {
	var req struct {
		SourceID string `json:"source_id" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.studio.ShowClipOverlay(c.Request.Context(), domain.SourceID(req.SourceID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "playing"})
}

func (h *StudioHandler) ClearClipOverlay(c *gin.Context) {
	if err := h.studio.ClearClipOverlay(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func failedMap(result *domain.StartResult) map[string]string {
	out := make(map[string]string, len(result.Failed))
	for id, err := range result.Failed {
		out[string(id)] = err.Error()
	}
	return out
}

// respondError maps application and domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	switch {
	case errors.Is(err, domain.ErrDestinationNotFound),
		errors.Is(err, domain.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidLayout),
		errors.Is(err, domain.ErrNoDestinations):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientBuffer):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
