package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/investours/backend/internal/middleware"
	"github.com/investours/backend/internal/services/referral"
	"github.com/shopspring/decimal"
)

// ReferralHandler serves the referral graph and attribution endpoints.
type ReferralHandler struct {
	graph  *referral.GraphService
	engine *referral.Engine
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(graph *referral.GraphService, engine *referral.Engine) *ReferralHandler {
	return &ReferralHandler{graph: graph, engine: engine}
}

// AttachReferral links the authenticated principal to a referrer.
// POST /api/v1/referrals/attach
func (h *ReferralHandler) AttachReferral(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		ReferralCode string `json:"referral_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "referral_code is required"})
		return
	}

	edge, err := h.graph.AttachReferral(c.Request.Context(), principalID, req.ReferralCode)
	switch {
	case errors.Is(err, referral.ErrUnknownReferralCode):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, referral.ErrSelfReferral), errors.Is(err, referral.ErrAlreadyReferred):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to attach referral"})
	default:
		c.JSON(http.StatusCreated, gin.H{"referral": edge})
	}
}

// ListReferrals returns the authenticated principal's direct referrals.
// GET /api/v1/referrals
func (h *ReferralHandler) ListReferrals(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	edges, total, err := h.graph.Referrals(c.Request.Context(), principalID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referrals": edges,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// AttributeEvent records commissions for a triggering business event.
// Called by the payment and subscription subsystems; admin-scoped.
// POST /api/v1/admin/events/attribute
func (h *ReferralHandler) AttributeEvent(c *gin.Context) {
	var req struct {
		PrincipalID string `json:"principal_id" binding:"required"`
		Event       string `json:"event" binding:"required"`
		BaseAmount  string `json:"base_amount" binding:"required"`
		EventKey    string `json:"event_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal_id, event, base_amount and event_key are required"})
		return
	}

	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal_id"})
		return
	}
	baseAmount, err := decimal.NewFromString(req.BaseAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base_amount"})
		return
	}

	earnings, err := h.engine.Attribute(c.Request.Context(), referral.AttributionInput{
		TriggeringPrincipalID: principalID,
		Event:                 referral.Event(req.Event),
		BaseAmount:            baseAmount,
		EventKey:              req.EventKey,
	})
	switch {
	case errors.Is(err, referral.ErrUnknownEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attribution failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"earnings": earnings})
	}
}

// pagination reads limit/offset query params with defaults.
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
