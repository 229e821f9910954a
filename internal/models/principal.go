package models

import (
	"github.com/google/uuid"
)

// Tier is the subscription level governing commission rates.
type Tier string

const (
	TierFree      Tier = "Free"
	TierPremium   Tier = "Premium"
	TierExclusive Tier = "Exclusive"
)

// PrincipalKind distinguishes the concrete actor behind a principal.
// Individuals, community groups and firms all earn the same way; the
// ledger never branches on kind.
type PrincipalKind string

const (
	PrincipalKindIndividual PrincipalKind = "individual"
	PrincipalKindGroup      PrincipalKind = "group"
	PrincipalKindFirm       PrincipalKind = "firm"
)

// Principal is the identity subsystem's view of an actor, as read by the
// ledger core. Only ID, Tier, IsGFE and ReferralCode are consulted here;
// everything else (profiles, credentials) lives with identity.
type Principal struct {
	Base
	Kind         PrincipalKind `gorm:"type:varchar(20);not null;default:'individual'" json:"kind"`
	FullName     string        `gorm:"type:varchar(255)" json:"full_name"`
	Tier         Tier          `gorm:"type:varchar(20);not null;default:'Free'" json:"tier"`
	IsGFE        bool          `gorm:"default:false" json:"is_gfe"`
	ReferralCode string        `gorm:"type:varchar(50);uniqueIndex" json:"referral_code"`
}

// Actor is the capability the ledger requires of any earning party,
// regardless of concrete kind.
type Actor interface {
	PrincipalID() uuid.UUID
	PrincipalTier() Tier
	GFEEnabled() bool
}

// PrincipalID implements Actor.
func (p *Principal) PrincipalID() uuid.UUID { return p.ID }

// PrincipalTier implements Actor.
func (p *Principal) PrincipalTier() Tier { return p.Tier }

// GFEEnabled implements Actor.
func (p *Principal) GFEEnabled() bool { return p.IsGFE }
