package models

import (
	"github.com/google/uuid"
)

// WithdrawalSchedule is the advertised payout window for GFE withdrawals.
type WithdrawalSchedule string

const (
	WithdrawalScheduleWithin72Hours WithdrawalSchedule = "within_72_hours"
	WithdrawalScheduleWeekly        WithdrawalSchedule = "weekly"
	WithdrawalScheduleMonthly       WithdrawalSchedule = "monthly"
)

// GFEProfile is the per-principal rollup of referral performance and
// payout settings for a Grassroots Financial Educator. Created lazily on
// first access once a principal becomes a GFE.
//
// TotalEarnings and the funnel counters are display caches recomputed
// from Referral/Earning rows; wallet balances are never derived from
// them.
type GFEProfile struct {
	Base
	PrincipalID             uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"principal_id"`
	Principal               Principal          `gorm:"foreignKey:PrincipalID" json:"-"`
	TotalEarnings           Money              `gorm:"type:decimal(20,2);default:0" json:"total_earnings"`
	GemPoints               Money              `gorm:"type:decimal(20,2);default:0" json:"gem_points"`
	LifetimeReferredUsers   int64              `gorm:"default:0" json:"lifetime_referred_users"`
	TotalSubAffiliates      int64              `gorm:"default:0" json:"total_sub_affiliates"`
	ActiveUsersLast30Days   int64              `gorm:"column:active_users_last_30_days;default:0" json:"active_users_last_30_days"`
	ClickThroughs           int64              `gorm:"default:0" json:"click_throughs"`
	SignUps                 int64              `gorm:"default:0" json:"sign_ups"`
	VerifiedUsers           int64              `gorm:"default:0" json:"verified_users"`
	SubscribedUsers         int64              `gorm:"default:0" json:"subscribed_users"`
	InvestingUsers          int64              `gorm:"default:0" json:"investing_users"`
	ConversionRate          float64            `gorm:"default:0" json:"conversion_rate"`
	WithdrawalThreshold     Money              `gorm:"type:decimal(20,2);default:5000" json:"withdrawal_threshold"`
	WithdrawalFeePercentage Money              `gorm:"type:decimal(20,2);default:15" json:"withdrawal_fee_percentage"`
	WithdrawalSchedule      WithdrawalSchedule `gorm:"type:varchar(30);default:'within_72_hours'" json:"withdrawal_schedule"`
	ReferralLink            string             `gorm:"type:text" json:"referral_link"`
	QRCode                  string             `gorm:"type:text" json:"qr_code"`
}

// EarningsBreakdown groups a GFE's earnings by commission type for the
// overview display.
type EarningsBreakdown struct {
	OnboardingBonus     Money `json:"onboarding_bonus"`
	DirectSubscribers   Money `json:"direct_subscribers"`
	DirectInvestors     Money `json:"direct_investors"`
	IndirectSubscribers Money `json:"indirect_subscribers"`
	IndirectInvestors   Money `json:"indirect_investors"`
	Bonuses             Money `json:"bonuses"`
}
