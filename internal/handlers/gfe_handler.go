package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/investours/backend/internal/middleware"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/services/gfe"
	"github.com/investours/backend/internal/services/wallet"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GFEHandler serves the GFE dashboard, wallet and withdrawal endpoints.
type GFEHandler struct {
	db      *gorm.DB
	gfe     *gfe.Service
	wallets *wallet.Service
}

// NewGFEHandler creates a new GFE handler
func NewGFEHandler(db *gorm.DB, gfeService *gfe.Service, wallets *wallet.Service) *GFEHandler {
	return &GFEHandler{db: db, gfe: gfeService, wallets: wallets}
}

// currentPrincipal loads the authenticated principal record.
func (h *GFEHandler) currentPrincipal(c *gin.Context) (*models.Principal, bool) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	var principal models.Principal
	err := h.db.WithContext(c.Request.Context()).First(&principal, "id = ?", principalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "principal not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load principal"})
		return nil, false
	}
	return &principal, true
}

// GetOverview returns the GFE dashboard payload.
// GET /api/v1/gfe/overview
func (h *GFEHandler) GetOverview(c *gin.Context) {
	principal, ok := h.currentPrincipal(c)
	if !ok {
		return
	}

	overview, err := h.gfe.GetOverview(c.Request.Context(), principal)
	switch {
	case errors.Is(err, gfe.ErrNotGFE):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load overview"})
	default:
		c.JSON(http.StatusOK, overview)
	}
}

// GetProfile returns the GFE profile with referral link and QR code.
// GET /api/v1/gfe/profile
func (h *GFEHandler) GetProfile(c *gin.Context) {
	principal, ok := h.currentPrincipal(c)
	if !ok {
		return
	}

	profile, err := h.gfe.GetOrCreateProfile(c.Request.Context(), principal)
	switch {
	case errors.Is(err, gfe.ErrNotGFE):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
	default:
		c.JSON(http.StatusOK, gin.H{"profile": profile})
	}
}

// GetEarnings returns the earnings breakdown by commission type.
// GET /api/v1/gfe/earnings
func (h *GFEHandler) GetEarnings(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	breakdown, err := h.gfe.EarningsBreakdown(c.Request.Context(), principalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load earnings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings_breakdown": breakdown})
}

// GetLeaderboard returns GFEs ranked by total earnings.
// GET /api/v1/gfe/leaderboard
func (h *GFEHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := pagination(c)
	entries, err := h.gfe.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// TrackClick counts a referral link click-through. Public.
// POST /api/v1/gfe/track-click
func (h *GFEHandler) TrackClick(c *gin.Context) {
	var req struct {
		ReferralCode string `json:"referral_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "referral_code is required"})
		return
	}

	if err := h.gfe.TrackClick(c.Request.Context(), req.ReferralCode, c.ClientIP()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to track click"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetWallet returns the principal's wallet balances.
// GET /api/v1/gfe/wallet
func (h *GFEHandler) GetWallet(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	w, err := h.wallets.GetWallet(c.Request.Context(), principalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wallet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": w})
}

// ListTransactions returns the wallet's transaction log.
// GET /api/v1/gfe/wallet/transactions
func (h *GFEHandler) ListTransactions(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	source := models.TransactionSource(c.Query("source"))
	txns, total, err := h.wallets.Transactions(c.Request.Context(), principalID, source, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// RequestWithdrawal opens a withdrawal against the GFE balance.
// POST /api/v1/gfe/withdrawals
func (h *GFEHandler) RequestWithdrawal(c *gin.Context) {
	principal, ok := h.currentPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		Amount string `json:"amount" binding:"required"`
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

	profile, err := h.gfe.GetOrCreateProfile(c.Request.Context(), principal)
	if errors.Is(err, gfe.ErrNotGFE) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	request, err := h.wallets.RequestWithdrawal(c.Request.Context(), principal.ID, amount, profile)
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrBelowThreshold):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrWalletLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request withdrawal"})
	default:
		c.JSON(http.StatusCreated, gin.H{"withdrawal": request})
	}
}

// ListWithdrawals returns the principal's withdrawal history.
// GET /api/v1/gfe/withdrawals
func (h *GFEHandler) ListWithdrawals(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	reqs, total, err := h.wallets.Withdrawals(c.Request.Context(), principalID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load withdrawals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": reqs,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}
