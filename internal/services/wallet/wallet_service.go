package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/investours/backend/internal/audit"
	"github.com/investours/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns all wallet balance mutations. Every credit or debit
// happens under a row lock with a Transaction row appended in the same
// database transaction, so balances and the log can never diverge.
type Service struct {
	db    *gorm.DB
	audit *audit.Logger
}

// NewService creates a new wallet service
func NewService(db *gorm.DB, auditLogger *audit.Logger) *Service {
	return &Service{db: db, audit: auditLogger}
}

// balanceField routes a transaction source to the wallet balance it
// moves. Referral and bonus commissions accumulate in the GFE balance
// alongside direct gfe postings; gem points have their own bucket;
// everything else moves the main balance.
func balanceField(w *models.Wallet, source models.TransactionSource) *models.Money {
	switch source {
	case models.SourceGemPoints:
		return &w.GemPoints
	case models.SourceReferral, models.SourceBonus, models.SourceGFE:
		return &w.GFEBalance
	default:
		return &w.Balance
	}
}

// GetWallet fetches a principal's wallet, creating it on first use.
func (s *Service) GetWallet(ctx context.Context, principalID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.WithContext(ctx).Where("principal_id = ?", principalID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w = models.Wallet{PrincipalID: principalID}
		if err := s.db.WithContext(ctx).Create(&w).Error; err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		return &w, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// forUpdate applies a row lock on dialects that support it. SQLite has
// no FOR UPDATE; its writers serialize at the database level instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockWallet loads a wallet under FOR UPDATE inside tx, creating it if
// missing so first-ever credits do not fail.
func lockWallet(tx *gorm.DB, principalID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := forUpdate(tx).
		Where("principal_id = ?", principalID).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w = models.Wallet{PrincipalID: principalID}
		if err := tx.Create(&w).Error; err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		err = forUpdate(tx).
			Where("principal_id = ?", principalID).
			First(&w).Error
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Posting describes one atomic balance movement.
type Posting struct {
	PrincipalID  uuid.UUID
	Amount       decimal.Decimal
	Source       models.TransactionSource
	Narration    string
	RelatedID    *uuid.UUID
	RelatedModel string
}

// Credit adds funds to a wallet in its own database transaction.
func (s *Service) Credit(ctx context.Context, p Posting) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.CreditTx(tx, p)
		return err
	})
	return txn, err
}

// CreditTx adds funds to a wallet inside a caller-managed transaction.
// The wallet row is locked, the routed balance is bumped, and a credit
// Transaction is appended, all before the caller commits.
func (s *Service) CreditTx(tx *gorm.DB, p Posting) (*models.Transaction, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	w, err := lockWallet(tx, p.PrincipalID)
	if err != nil {
		return nil, err
	}

	field := balanceField(w, p.Source)
	before := *field
	after := models.NewMoney(before.Add(p.Amount))
	*field = after

	if err := tx.Save(w).Error; err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	txn := models.Transaction{
		WalletID:      w.ID,
		Amount:        models.NewMoney(p.Amount),
		Type:          models.TransactionTypeCredit,
		Narration:     p.Narration,
		Source:        p.Source,
		RelatedID:     p.RelatedID,
		RelatedModel:  p.RelatedModel,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return &txn, nil
}

// Debit removes funds from a wallet in its own database transaction.
func (s *Service) Debit(ctx context.Context, p Posting) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.DebitTx(tx, p)
		return err
	})
	return txn, err
}

// DebitTx removes funds inside a caller-managed transaction, failing
// with ErrInsufficientFunds if the routed balance would go negative.
func (s *Service) DebitTx(tx *gorm.DB, p Posting) (*models.Transaction, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	w, err := lockWallet(tx, p.PrincipalID)
	if err != nil {
		return nil, err
	}

	field := balanceField(w, p.Source)
	before := *field
	if before.LessThan(p.Amount) {
		return nil, ErrInsufficientFunds
	}
	after := models.NewMoney(before.Sub(p.Amount))
	*field = after

	if err := tx.Save(w).Error; err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	txn := models.Transaction{
		WalletID:      w.ID,
		Amount:        models.NewMoney(p.Amount),
		Type:          models.TransactionTypeDebit,
		Narration:     p.Narration,
		Source:        p.Source,
		RelatedID:     p.RelatedID,
		RelatedModel:  p.RelatedModel,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return &txn, nil
}

// Adjust applies an admin-initiated signed adjustment and records it on
// the audit trail. Positive amounts credit, negative amounts debit.
func (s *Service) Adjust(ctx context.Context, actorID, principalID uuid.UUID, amount decimal.Decimal, source models.TransactionSource, narration string) (*models.Transaction, error) {
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	p := Posting{
		PrincipalID: principalID,
		Amount:      amount.Abs(),
		Source:      source,
		Narration:   narration,
	}

	var txn *models.Transaction
	var err error
	if amount.IsPositive() {
		txn, err = s.Credit(ctx, p)
	} else {
		txn, err = s.Debit(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	s.audit.LogAction(audit.ActionBalanceAdjusted, actorID, principalID, map[string]interface{}{
		"amount":         amount.String(),
		"source":         string(source),
		"narration":      narration,
		"transaction_id": txn.ID.String(),
	})
	return txn, nil
}

// SetGFELock freezes or unfreezes a principal's GFE wallet and audits
// the change.
func (s *Service) SetGFELock(ctx context.Context, actorID, principalID uuid.UUID, locked bool, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("principal_id = ?", principalID).
		Update("is_gfe_wallet_locked", locked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	action := audit.ActionWalletLocked
	if !locked {
		action = audit.ActionWalletUnlocked
	}
	s.audit.LogAction(action, actorID, principalID, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// Transactions lists a wallet's transaction log, newest first, with an
// optional source filter.
func (s *Service) Transactions(ctx context.Context, principalID uuid.UUID, source models.TransactionSource, limit, offset int) ([]models.Transaction, int64, error) {
	w, err := s.GetWallet(ctx, principalID)
	if err != nil {
		return nil, 0, err
	}

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("wallet_id = ?", w.ID)
		if source != "" {
			db = db.Where("source = ?", source)
		}
		return db
	}

	var total int64
	if err := filter(s.db.WithContext(ctx).Model(&models.Transaction{})).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	var txns []models.Transaction
	err = filter(s.db.WithContext(ctx)).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&txns).Error
	return txns, total, err
}
