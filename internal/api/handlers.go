// Package api serves the client's local state to a browser or UI shell.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dashsync/internal/dismiss"
	"dashsync/internal/logging"
	"dashsync/internal/metrics"
	"dashsync/internal/models"
	"dashsync/internal/overlay"
	"dashsync/internal/render"
)

// Watermark reports the highest message id the transcript holds.
type Watermark interface {
	LastSeenID() int64
}

// Deps are the collaborators a Handler reads from. Transcript, HTML and
// Dismisser are required; the rest may be nil.
type Deps struct {
	Watermark  Watermark
	Transcript *render.Memory
	HTML       *render.HTML
	Dismisser  dismiss.Dismisser
	Overlays   *overlay.Registry
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Handler wires HTTP routes to the sync engine's views and the dismisser.
type Handler struct {
	watermark  Watermark
	transcript *render.Memory
	html       *render.HTML
	dismisser  dismiss.Dismisser
	overlays   *overlay.Registry
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Transcript == nil || deps.HTML == nil {
		return nil, errors.New("transcript views required")
	}
	if deps.Dismisser == nil {
		return nil, errors.New("dismisser required")
	}
	return &Handler{
		watermark:  deps.Watermark,
		transcript: deps.Transcript,
		html:       deps.HTML,
		dismisser:  deps.Dismisser,
		overlays:   deps.Overlays,
		metrics:    deps.Metrics,
		logger:     logging.OrNop(deps.Logger),
	}, nil
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/transcript", h.getTranscript)
	router.GET("/transcript.html", h.getTranscriptHTML)
	router.GET("/outliers", h.listDismissed)
	router.GET("/outliers/:id", h.getOutlier)
	router.POST("/outliers/:id/dismiss", h.dismissOutlier)
	router.POST("/outliers/:id/dismiss/request", h.requestDismissal)
	router.POST("/outliers/:id/pointer", h.pointerEvent)
	router.GET("/dismissal/pending", h.getPendingDismissal)
	router.POST("/dismissal/confirm", h.confirmDismissal)
	router.DELETE("/dismissal/pending", h.cancelDismissal)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

func (h *Handler) getTranscript(c *gin.Context) {
	messages := h.transcript.Messages()
	var lastID int64
	if h.watermark != nil {
		lastID = h.watermark.LastSeenID()
	} else if n := len(messages); n > 0 {
		lastID = messages[n-1].ID
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"last_id":  lastID,
		"messages": messages,
	})
}

func (h *Handler) getTranscriptHTML(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.html.Snapshot()))
}

// listDismissed runs the load-time pass over the ids in the query and
// suppresses the overlays of the dismissed ones.
func (h *Handler) listDismissed(c *gin.Context) {
	var ids []string
	for _, raw := range c.QueryArray("id") {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	var view dismiss.View
	if h.overlays != nil {
		view = h.overlays.Elements()
	}
	hidden := dismiss.Apply(c.Request.Context(), h.dismisser, view, ids)
	if hidden == nil {
		hidden = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"variant":   h.dismisser.Variant(),
		"dismissed": hidden,
	})
}

func (h *Handler) getOutlier(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid outlier id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outlier_id": id,
		"dismissed":  h.dismisser.IsDismissed(c.Request.Context(), id),
	})
}

// dismissOutlier treats the request itself as the user's confirmation.
func (h *Handler) dismissOutlier(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid outlier id"})
		return
	}
	if err := h.dismisser.Dismiss(c.Request.Context(), id); err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, dismiss.ErrDeclined):
			status = http.StatusConflict
		case errors.Is(err, dismiss.ErrRejected):
			status = http.StatusUnprocessableEntity
		}
		h.logger.Warn("dismiss request failed", zap.String("outlier_id", id), zap.Error(err))
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	h.suppressLocal(id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// suppressLocal keeps a dismissed warning's overlay from reopening. Only the
// TTL variant hides warnings on the client.
func (h *Handler) suppressLocal(id string) {
	if h.overlays != nil && h.dismisser.Variant() == dismiss.VariantTTL {
		h.overlays.Suppress(id)
	}
}

// pendingDismisser is the two-phase flow of the TTL variant: a request opens
// the confirmation and a later call confirms or cancels it.
type pendingDismisser interface {
	Request(outlierID string)
	Pending() (string, bool)
	Cancel()
	ConfirmPending(ctx context.Context) error
}

func (h *Handler) twoPhase(c *gin.Context) (pendingDismisser, bool) {
	p, ok := h.dismisser.(pendingDismisser)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "two-phase dismissal needs " + dismiss.VariantTTL + " mode"})
		return nil, false
	}
	return p, true
}

// requestDismissal opens the confirmation for one warning. Its hover overlay
// is closed while the confirmation is shown.
func (h *Handler) requestDismissal(c *gin.Context) {
	p, ok := h.twoPhase(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid outlier id"})
		return
	}
	p.Request(id)
	c.JSON(http.StatusAccepted, gin.H{
		"outlier_id": id,
		"prompt":     dismiss.ConfirmPrompt(id),
	})
}

func (h *Handler) getPendingDismissal(c *gin.Context) {
	p, ok := h.twoPhase(c)
	if !ok {
		return
	}
	id, pending := p.Pending()
	c.JSON(http.StatusOK, gin.H{"pending": pending, "outlier_id": id})
}

func (h *Handler) confirmDismissal(c *gin.Context) {
	p, ok := h.twoPhase(c)
	if !ok {
		return
	}
	id, _ := p.Pending()
	if err := p.ConfirmPending(c.Request.Context()); err != nil {
		if errors.Is(err, dismiss.ErrNoPending) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		h.logger.Warn("confirm dismissal failed", zap.String("outlier_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}
	h.suppressLocal(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "outlier_id": id})
}

func (h *Handler) cancelDismissal(c *gin.Context) {
	p, ok := h.twoPhase(c)
	if !ok {
		return
	}
	p.Cancel()
	c.Status(http.StatusNoContent)
}

type pointerRequest struct {
	Target string `json:"target"`
	Inside bool   `json:"inside"`
}

// pointerEvent feeds hover events from the UI shell into the overlay registry.
func (h *Handler) pointerEvent(c *gin.Context) {
	if h.overlays == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "overlays not enabled"})
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch req.Target {
	case "trigger":
		if req.Inside {
			h.overlays.EnterTrigger(id)
		} else {
			h.overlays.LeaveTrigger(id)
		}
	case "panel":
		if req.Inside {
			h.overlays.EnterPanel(id)
		} else {
			h.overlays.LeavePanel(id)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "target must be trigger or panel"})
		return
	}
	state := overlay.Hidden
	if o, ok := h.overlays.Get(id); ok {
		state = o.State()
	}
	c.JSON(http.StatusOK, gin.H{"outlier_id": id, "state": state.String()})
}
