package referral

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/services/wallet"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Event is a commission-triggering business event.
type Event string

const (
	EventSubscribed Event = "subscribed"
	EventInvested   Event = "invested"
)

// earningTypes maps an event to the direct and indirect earning types
// it produces.
func earningTypes(event Event) (direct, indirect models.EarningType, err error) {
	switch event {
	case EventSubscribed:
		return models.EarningTypeDirectSubscriber, models.EarningTypeIndirectSubscriber, nil
	case EventInvested:
		return models.EarningTypeDirectInvestor, models.EarningTypeIndirectInvestor, nil
	default:
		return "", "", ErrUnknownEvent
	}
}

// Engine turns triggering events into commission earnings and wallet
// credits. All postings for one event commit in a single database
// transaction, keyed by an idempotency record so retried events no-op.
// The two-hop ancestor walk happens inline so it reads from the same
// transaction as the postings.
type Engine struct {
	db      *gorm.DB
	wallets *wallet.Service
	bonus   decimal.Decimal
}

// NewEngine creates a new attribution engine
func NewEngine(db *gorm.DB, wallets *wallet.Service, onboardingBonus decimal.Decimal) *Engine {
	return &Engine{db: db, wallets: wallets, bonus: onboardingBonus}
}

// AttributionInput describes one triggering event.
type AttributionInput struct {
	TriggeringPrincipalID uuid.UUID
	Event                 Event
	BaseAmount            decimal.Decimal
	// EventKey uniquely identifies the business event (e.g. payment
	// reference). Replays with the same key attribute nothing.
	EventKey string
}

// Attribute records commissions for a triggering event: the direct
// referrer earns at their own tier's direct rate, and the referrer's
// referrer earns at their own tier's indirect rate. Earnings, wallet
// credits and the idempotency marker commit together or not at all.
//
// Returns the earnings created; an empty slice with nil error means
// the event produced nothing (no referrer, zero amount, or replay).
func (e *Engine) Attribute(ctx context.Context, in AttributionInput) ([]models.Earning, error) {
	if in.BaseAmount.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}
	directType, indirectType, err := earningTypes(in.Event)
	if err != nil {
		return nil, err
	}

	var created []models.Earning
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.EventKey != "" {
			marker := models.AttributedEvent{
				EventKey:    in.EventKey,
				PrincipalID: in.TriggeringPrincipalID,
				EventType:   string(in.Event),
				BaseAmount:  models.NewMoney(in.BaseAmount),
			}
			if err := tx.Create(&marker).Error; err != nil {
				if isUniqueViolation(err) {
					return errAlreadyAttributed
				}
				return fmt.Errorf("failed to record event: %w", err)
			}
		}

		var edge models.Referral
		err := tx.Where("referred_principal_id = ?", in.TriggeringPrincipalID).
			First(&edge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var l1 models.Principal
		if err := tx.First(&l1, "id = ?", edge.ReferrerID).Error; err != nil {
			return fmt.Errorf("failed to load referrer: %w", err)
		}

		earning, err := e.payCommission(tx, &edge, &l1, 1, directType, in.BaseAmount)
		if err != nil {
			return err
		}
		if earning != nil {
			created = append(created, *earning)
		}

		// Level 2: the referrer's own referrer, paid at the
		// ancestor's indirect rate against the same base amount.
		var grandEdge models.Referral
		err = tx.Where("referred_principal_id = ?", l1.ID).First(&grandEdge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var l2 models.Principal
		if err := tx.First(&l2, "id = ?", grandEdge.ReferrerID).Error; err != nil {
			return fmt.Errorf("failed to load ancestor: %w", err)
		}

		earning, err = e.payCommission(tx, &edge, &l2, 2, indirectType, in.BaseAmount)
		if err != nil {
			return err
		}
		if earning != nil {
			created = append(created, *earning)
		}
		return nil
	})
	if errors.Is(err, errAlreadyAttributed) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("posting failed: %w", err)
	}
	return created, nil
}

// payCommission creates one pending earning, credits the beneficiary's
// wallet and marks the earning paid, all inside the caller's
// transaction. The beneficiary is any earning-capable actor; the ledger
// never branches on its concrete kind. Zero-rate pairs produce no
// earning.
func (e *Engine) payCommission(tx *gorm.DB, edge *models.Referral, beneficiary models.Actor, level int, earningType models.EarningType, base decimal.Decimal) (*models.Earning, error) {
	amount := CommissionAmount(base, earningType, beneficiary.PrincipalTier())
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	earning := models.Earning{
		ReferralID:    edge.ID,
		BeneficiaryID: beneficiary.PrincipalID(),
		Level:         level,
		Amount:        models.NewMoney(amount),
		Type:          earningType,
		Narration:     fmt.Sprintf("%s commission", earningType),
		Status:        models.EarningStatusPending,
	}
	if err := tx.Create(&earning).Error; err != nil {
		return nil, fmt.Errorf("failed to create earning: %w", err)
	}

	if _, err := e.wallets.CreditTx(tx, wallet.Posting{
		PrincipalID:  beneficiary.PrincipalID(),
		Amount:       amount,
		Source:       models.SourceReferral,
		Narration:    earning.Narration,
		RelatedID:    &earning.ID,
		RelatedModel: "earning",
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := tx.Model(&earning).Updates(map[string]interface{}{
		"status":  models.EarningStatusPaid,
		"paid_at": now,
	}).Error; err != nil {
		return nil, err
	}
	earning.Status = models.EarningStatusPaid
	earning.PaidAt = &now
	return &earning, nil
}

// PayOnboardingBonuses sweeps referral edges that have not yet received
// the flat onboarding bonus and pays each inside its own transaction.
// The bonus-type earning row is the at-most-once marker: a partial
// unique index on earnings(referral_id) for bonus rows means that when
// two overlapping sweeps race on the same edge, one insert hits the
// constraint and that edge's transaction rolls back without paying.
func (e *Engine) PayOnboardingBonuses(ctx context.Context) (int, error) {
	if e.bonus.LessThanOrEqual(decimal.Zero) {
		return 0, nil
	}

	var edges []models.Referral
	err := e.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM earnings WHERE earnings.referral_id = referrals.id AND earnings.type = ?)",
			models.EarningTypeBonus).
		Find(&edges).Error
	if err != nil {
		return 0, err
	}

	paid := 0
	for _, edge := range edges {
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			earning := models.Earning{
				ReferralID:    edge.ID,
				BeneficiaryID: edge.ReferrerID,
				Level:         1,
				Amount:        models.NewMoney(e.bonus),
				Type:          models.EarningTypeBonus,
				Narration:     models.OnboardingBonusNarration,
				Status:        models.EarningStatusPending,
			}
			if err := tx.Create(&earning).Error; err != nil {
				if isUniqueViolation(err) {
					return errAlreadyAttributed
				}
				return err
			}

			if _, err := e.wallets.CreditTx(tx, wallet.Posting{
				PrincipalID:  edge.ReferrerID,
				Amount:       e.bonus,
				Source:       models.SourceBonus,
				Narration:    earning.Narration,
				RelatedID:    &earning.ID,
				RelatedModel: "earning",
			}); err != nil {
				return err
			}

			now := time.Now()
			if err := tx.Model(&earning).Updates(map[string]interface{}{
				"status":  models.EarningStatusPaid,
				"paid_at": now,
			}).Error; err != nil {
				return err
			}
			paid++
			return nil
		})
		if errors.Is(err, errAlreadyAttributed) {
			// A concurrent sweep already paid this edge.
			continue
		}
		if err != nil {
			log.Printf("referral: onboarding bonus for edge %s failed: %v", edge.ID, err)
		}
	}
	return paid, nil
}

// errAlreadyAttributed is an internal sentinel used to roll back the
// attribution transaction on an idempotency replay.
var errAlreadyAttributed = fmt.Errorf("event already attributed")

// isUniqueViolation matches unique constraint errors across postgres
// and sqlite without driver-specific error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed")
}
