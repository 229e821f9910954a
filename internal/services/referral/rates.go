package referral

import (
	"github.com/investours/backend/internal/models"
	"github.com/shopspring/decimal"
)

// commissionRates maps the beneficiary's subscription tier to the
// fraction of the base amount paid for each earning type. Direct rates
// apply to level-1 referrers; indirect rates apply to the level-2
// ancestor. Rates are keyed by the BENEFICIARY's tier, not the
// triggering principal's.
var commissionRates = map[models.Tier]map[models.EarningType]decimal.Decimal{
	models.TierFree: {
		models.EarningTypeDirectSubscriber:   decimal.RequireFromString("0.30"),
		models.EarningTypeDirectInvestor:     decimal.RequireFromString("0.40"),
		models.EarningTypeIndirectSubscriber: decimal.RequireFromString("0.10"),
		models.EarningTypeIndirectInvestor:   decimal.RequireFromString("0.05"),
	},
	models.TierPremium: {
		models.EarningTypeDirectSubscriber:   decimal.RequireFromString("0.35"),
		models.EarningTypeDirectInvestor:     decimal.RequireFromString("0.45"),
		models.EarningTypeIndirectSubscriber: decimal.RequireFromString("0.12"),
		models.EarningTypeIndirectInvestor:   decimal.RequireFromString("0.06"),
	},
	models.TierExclusive: {
		models.EarningTypeDirectSubscriber:   decimal.RequireFromString("0.40"),
		models.EarningTypeDirectInvestor:     decimal.RequireFromString("0.50"),
		models.EarningTypeIndirectSubscriber: decimal.RequireFromString("0.15"),
		models.EarningTypeIndirectInvestor:   decimal.RequireFromString("0.08"),
	},
}

// Rate returns the commission fraction for an earning type at a given
// tier. Unknown tier/type pairs return zero so the attribution engine
// records nothing rather than failing the event.
func Rate(earningType models.EarningType, tier models.Tier) decimal.Decimal {
	byType, ok := commissionRates[tier]
	if !ok {
		return decimal.Zero
	}
	rate, ok := byType[earningType]
	if !ok {
		return decimal.Zero
	}
	return rate
}

// CommissionAmount computes the commission for a base amount at the
// given tier and earning type, rounded to 2 decimal places.
func CommissionAmount(base decimal.Decimal, earningType models.EarningType, tier models.Tier) decimal.Decimal {
	return base.Mul(Rate(earningType, tier)).Round(2)
}
