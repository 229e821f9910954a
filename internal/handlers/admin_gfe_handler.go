package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/investours/backend/internal/audit"
	"github.com/investours/backend/internal/middleware"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/services/gfe"
	"github.com/investours/backend/internal/services/wallet"
	"github.com/shopspring/decimal"
)

// AdminGFEHandler serves admin operations on GFE wallets, profiles and
// withdrawal settlement. All routes sit behind the admin middleware.
type AdminGFEHandler struct {
	gfe     *gfe.Service
	wallets *wallet.Service
	audit   *audit.Logger
}

// NewAdminGFEHandler creates a new admin GFE handler
func NewAdminGFEHandler(gfeService *gfe.Service, wallets *wallet.Service, auditLogger *audit.Logger) *AdminGFEHandler {
	return &AdminGFEHandler{gfe: gfeService, wallets: wallets, audit: auditLogger}
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// SetWalletLock freezes or unfreezes a GFE wallet.
// POST /api/v1/admin/gfe/:principal_id/lock
func (h *AdminGFEHandler) SetWalletLock(c *gin.Context) {
	principalID, ok := parseIDParam(c, "principal_id")
	if !ok {
		return
	}
	actorID, _ := middleware.PrincipalID(c)

	var req struct {
		Locked bool   `json:"locked"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.wallets.SetGFELock(c.Request.Context(), actorID, principalID, req.Locked, req.Reason)
	switch {
	case errors.Is(err, wallet.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update wallet lock"})
	default:
		c.JSON(http.StatusOK, gin.H{"locked": req.Locked})
	}
}

// AdjustBalance applies a signed admin adjustment to a wallet balance.
// POST /api/v1/admin/gfe/:principal_id/adjust
func (h *AdminGFEHandler) AdjustBalance(c *gin.Context) {
	principalID, ok := parseIDParam(c, "principal_id")
	if !ok {
		return
	}
	actorID, _ := middleware.PrincipalID(c)

	var req struct {
		Amount    string `json:"amount" binding:"required"`
		Source    string `json:"source" binding:"required"`
		Narration string `json:"narration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and source are required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	txn, err := h.wallets.Adjust(c.Request.Context(), actorID, principalID, amount,
		models.TransactionSource(req.Source), req.Narration)
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to adjust balance"})
	default:
		c.JSON(http.StatusOK, gin.H{"transaction": txn})
	}
}

// AwardGemPoints credits gem points to a principal.
// POST /api/v1/admin/gfe/:principal_id/gem-points
func (h *AdminGFEHandler) AwardGemPoints(c *gin.Context) {
	principalID, ok := parseIDParam(c, "principal_id")
	if !ok {
		return
	}
	actorID, _ := middleware.PrincipalID(c)

	var req struct {
		Amount    string `json:"amount" binding:"required"`
		Narration string `json:"narration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	if err := h.gfe.AwardGemPoints(c.Request.Context(), actorID, principalID, amount, req.Narration); err != nil {
		if errors.Is(err, wallet.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to award gem points"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UpdateSettings changes a profile's withdrawal settings.
// PUT /api/v1/admin/gfe/:principal_id/settings
func (h *AdminGFEHandler) UpdateSettings(c *gin.Context) {
	principalID, ok := parseIDParam(c, "principal_id")
	if !ok {
		return
	}
	actorID, _ := middleware.PrincipalID(c)

	var req struct {
		WithdrawalThreshold     *string `json:"withdrawal_threshold"`
		WithdrawalFeePercentage *string `json:"withdrawal_fee_percentage"`
		WithdrawalSchedule      *string `json:"withdrawal_schedule"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var threshold, fee *decimal.Decimal
	if req.WithdrawalThreshold != nil {
		d, err := decimal.NewFromString(*req.WithdrawalThreshold)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal_threshold"})
			return
		}
		threshold = &d
	}
	if req.WithdrawalFeePercentage != nil {
		d, err := decimal.NewFromString(*req.WithdrawalFeePercentage)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal_fee_percentage"})
			return
		}
		fee = &d
	}
	var schedule *models.WithdrawalSchedule
	if req.WithdrawalSchedule != nil {
		s := models.WithdrawalSchedule(*req.WithdrawalSchedule)
		schedule = &s
	}

	profile, err := h.gfe.UpdateSettings(c.Request.Context(), actorID, principalID, threshold, fee, schedule)
	switch {
	case errors.Is(err, gfe.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
	default:
		c.JSON(http.StatusOK, gin.H{"profile": profile})
	}
}

// SettleWithdrawal applies a settlement outcome reported by the payment
// rail.
// POST /api/v1/admin/withdrawals/:withdrawal_id/settle
func (h *AdminGFEHandler) SettleWithdrawal(c *gin.Context) {
	withdrawalID, ok := parseIDParam(c, "withdrawal_id")
	if !ok {
		return
	}

	var req struct {
		Outcome string `json:"outcome" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "outcome is required"})
		return
	}

	var err error
	switch req.Outcome {
	case "processing":
		err = h.wallets.MarkProcessing(c.Request.Context(), withdrawalID)
	case "successful":
		err = h.wallets.MarkSuccessful(c.Request.Context(), withdrawalID)
	case "failed":
		err = h.wallets.MarkFailed(c.Request.Context(), withdrawalID, req.Reason)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "outcome must be processing, successful or failed"})
		return
	}

	switch {
	case errors.Is(err, wallet.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrInvalidWithdrawalState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to settle withdrawal"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": req.Outcome})
	}
}

// GetAuditTrail returns recent audit entries for a principal.
// GET /api/v1/admin/gfe/:principal_id/audit
func (h *AdminGFEHandler) GetAuditTrail(c *gin.Context) {
	principalID, ok := parseIDParam(c, "principal_id")
	if !ok {
		return
	}

	limit, _ := pagination(c)
	logs, err := h.audit.Query(principalID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}
