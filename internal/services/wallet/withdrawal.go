package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// hundred is the divisor for percentage fee math.
var hundred = decimal.NewFromInt(100)

// RequestWithdrawal reserves the gross amount out of the GFE balance
// and opens a pending withdrawal request, atomically. The fee is kept
// inside the gross amount; the payment rail pays out the net.
//
// Validation order: amount, lock, threshold, funds.
func (s *Service) RequestWithdrawal(ctx context.Context, principalID uuid.UUID, amount decimal.Decimal, profile *models.GFEProfile) (*models.WithdrawalRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	var req *models.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWallet(tx, principalID)
		if err != nil {
			return err
		}
		if w.IsGFEWalletLocked {
			return ErrWalletLocked
		}
		if amount.LessThan(profile.WithdrawalThreshold.Decimal) {
			return ErrBelowThreshold
		}
		if w.GFEBalance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		fee := amount.Mul(profile.WithdrawalFeePercentage.Decimal).Div(hundred).Round(2)
		net := amount.Sub(fee)
		reference := utils.GenerateReference("WDL")

		req = &models.WithdrawalRequest{
			WalletID:    w.ID,
			PrincipalID: principalID,
			Amount:      models.NewMoney(amount),
			Method:      "bank",
			Status:      models.WithdrawalStatusPending,
			Fee:         models.NewMoney(fee),
			NetAmount:   models.NewMoney(net),
			Reference:   reference,
		}
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create withdrawal request: %w", err)
		}

		_, err = s.DebitTx(tx, Posting{
			PrincipalID:  principalID,
			Amount:       amount,
			Source:       models.SourceGFE,
			Narration:    fmt.Sprintf("GFE withdrawal %s", reference),
			RelatedID:    &req.ID,
			RelatedModel: "withdrawal_request",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// MarkProcessing moves a pending request to processing.
func (s *Service) MarkProcessing(ctx context.Context, requestID uuid.UUID) error {
	return s.transition(ctx, requestID, models.WithdrawalStatusProcessing, "",
		models.WithdrawalStatusPending)
}

// MarkSuccessful finalizes a request after the payment rail confirms
// the payout. Terminal; the reserved funds are gone.
func (s *Service) MarkSuccessful(ctx context.Context, requestID uuid.UUID) error {
	return s.transition(ctx, requestID, models.WithdrawalStatusSuccessful, "",
		models.WithdrawalStatusPending, models.WithdrawalStatusProcessing)
}

// MarkFailed finalizes a request after the payment rail rejects the
// payout and returns the full gross amount to the GFE balance, both in
// one transaction. Terminal.
func (s *Service) MarkFailed(ctx context.Context, requestID uuid.UUID, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.WithdrawalRequest
		err := forUpdate(tx).
			First(&req, "id = ?", requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWithdrawalNotFound
		}
		if err != nil {
			return err
		}
		if req.Status != models.WithdrawalStatusPending && req.Status != models.WithdrawalStatusProcessing {
			return ErrInvalidWithdrawalState
		}

		now := time.Now()
		if err := tx.Model(&req).Updates(map[string]interface{}{
			"status":       models.WithdrawalStatusFailed,
			"reason":       reason,
			"processed_at": now,
		}).Error; err != nil {
			return err
		}

		_, err = s.CreditTx(tx, Posting{
			PrincipalID:  req.PrincipalID,
			Amount:       req.Amount.Decimal,
			Source:       models.SourceGFE,
			Narration:    fmt.Sprintf("Reversal of failed withdrawal %s", req.Reference),
			RelatedID:    &req.ID,
			RelatedModel: "withdrawal_request",
		})
		return err
	})
}

// transition applies a guarded status change inside its own
// transaction.
func (s *Service) transition(ctx context.Context, requestID uuid.UUID, to models.WithdrawalStatus, reason string, from ...models.WithdrawalStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.WithdrawalRequest
		err := forUpdate(tx).
			First(&req, "id = ?", requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWithdrawalNotFound
		}
		if err != nil {
			return err
		}

		allowed := false
		for _, f := range from {
			if req.Status == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrInvalidWithdrawalState
		}

		updates := map[string]interface{}{
			"status":       to,
			"processed_at": time.Now(),
		}
		if reason != "" {
			updates["reason"] = reason
		}
		return tx.Model(&req).Updates(updates).Error
	})
}

// Withdrawals lists a principal's withdrawal requests, newest first.
func (s *Service) Withdrawals(ctx context.Context, principalID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Where("principal_id = ?", principalID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	var reqs []models.WithdrawalRequest
	err := s.db.WithContext(ctx).
		Where("principal_id = ?", principalID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, total, err
}

// PendingWithdrawals returns requests awaiting settlement, oldest
// first, for the settlement poller.
func (s *Service) PendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var reqs []models.WithdrawalRequest
	err := s.db.WithContext(ctx).
		Where("status = ?", models.WithdrawalStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&reqs).Error
	return reqs, err
}
