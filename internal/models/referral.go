package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus tracks the lifecycle of a referral edge.
type ReferralStatus string

const (
	ReferralStatusPending  ReferralStatus = "pending"
	ReferralStatusActive   ReferralStatus = "active"
	ReferralStatusInactive ReferralStatus = "inactive"
)

// EarningType classifies a commission event.
type EarningType string

const (
	EarningTypeDirectSubscriber   EarningType = "direct_subscriber"
	EarningTypeDirectInvestor     EarningType = "direct_investor"
	EarningTypeIndirectSubscriber EarningType = "indirect_subscriber"
	EarningTypeIndirectInvestor   EarningType = "indirect_investor"
	EarningTypeBonus              EarningType = "bonus"
)

// OnboardingBonusNarration marks the flat per-referral onboarding bonus
// among bonus-type earnings; other bonus rows are admin-granted.
const OnboardingBonusNarration = "Onboarding bonus"

// EarningStatus tracks payout state; pending transitions to paid exactly once.
type EarningStatus string

const (
	EarningStatusPending EarningStatus = "pending"
	EarningStatusPaid    EarningStatus = "paid"
)

// Referral represents a direct (level-1) referrer→referred edge. Each
// principal has at most one inbound edge, created at signup and never
// deleted. Indirect (level-2) relationships are derived by walking one
// hop up from the direct referrer; they are never stored.
type Referral struct {
	Base
	ReferrerID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"referrer_id"`
	Referrer            Principal      `gorm:"foreignKey:ReferrerID" json:"-"`
	ReferredPrincipalID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"referred_principal_id"`
	ReferredPrincipal   Principal      `gorm:"foreignKey:ReferredPrincipalID" json:"-"`
	ReferralCode        string         `gorm:"type:varchar(50);not null" json:"referral_code"`
	Status              ReferralStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	JoinedAt            time.Time      `json:"joined_at"`
	LastActivity        *time.Time     `json:"last_activity"`
	IsSubAffiliate      bool           `gorm:"default:false" json:"is_sub_affiliate"`
	Earnings            []Earning      `gorm:"foreignKey:ReferralID" json:"earnings,omitempty"`
}

// Earning is an immutable record of one commission event. Amount, type
// and creation time never change after insert; only Status/PaidAt
// transition pending→paid. BeneficiaryID is the principal whose wallet
// the commission was credited to (the level-1 referrer for direct
// earnings, the level-2 ancestor for indirect ones).
type Earning struct {
	Base
	ReferralID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"referral_id"`
	Referral      Referral      `gorm:"foreignKey:ReferralID" json:"-"`
	BeneficiaryID uuid.UUID     `gorm:"type:uuid;not null;index" json:"beneficiary_id"`
	Level         int           `gorm:"not null;default:1" json:"level"`
	Amount        Money         `gorm:"type:decimal(20,2);not null" json:"amount"`
	Type          EarningType   `gorm:"type:varchar(30);not null" json:"type"`
	Narration     string        `gorm:"type:text" json:"narration"`
	Status        EarningStatus `gorm:"type:varchar(10);not null;default:'pending'" json:"status"`
	PaidAt        *time.Time    `json:"paid_at"`
}

// AttributedEvent records an idempotency key for a triggering business
// event. The unique index closes the double-attribution window: a retried
// webhook inserts the same key, hits the constraint, and no-ops.
type AttributedEvent struct {
	Base
	EventKey    string      `gorm:"type:varchar(100);uniqueIndex;not null" json:"event_key"`
	PrincipalID uuid.UUID   `gorm:"type:uuid;not null;index" json:"principal_id"`
	EventType   string      `gorm:"type:varchar(30);not null" json:"event_type"`
	BaseAmount  Money       `gorm:"type:decimal(20,2)" json:"base_amount"`
}
