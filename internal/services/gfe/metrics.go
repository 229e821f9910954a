package gfe

import "math"

// Funnel holds the raw conversion funnel counters.
type Funnel struct {
	ClickThroughs   int64 `json:"click_throughs"`
	SignUps         int64 `json:"sign_ups"`
	VerifiedUsers   int64 `json:"verified_users"`
	SubscribedUsers int64 `json:"subscribed_users"`
	InvestingUsers  int64 `json:"investing_users"`
}

// FunnelRates are the stage-to-stage conversion percentages.
type FunnelRates struct {
	ClickToSignUp         float64 `json:"click_to_sign_up"`
	SignUpToVerified      float64 `json:"sign_up_to_verified"`
	VerifiedToSubscribed  float64 `json:"verified_to_subscribed"`
	SubscribedToInvesting float64 `json:"subscribed_to_investing"`
}

// Rates computes each stage's conversion percentage. Stages with a
// zero denominator report zero.
func (f Funnel) Rates() FunnelRates {
	return FunnelRates{
		ClickToSignUp:         percentage(f.SignUps, f.ClickThroughs),
		SignUpToVerified:      percentage(f.VerifiedUsers, f.SignUps),
		VerifiedToSubscribed:  percentage(f.SubscribedUsers, f.VerifiedUsers),
		SubscribedToInvesting: percentage(f.InvestingUsers, f.SubscribedUsers),
	}
}

// ConversionRate is the percentage of signed-up referrals that went on
// to invest, rounded to 2 decimal places. Zero sign-ups yield zero.
func ConversionRate(investingUsers, signUps int64) float64 {
	return percentage(investingUsers, signUps)
}

func percentage(numerator, denominator int64) float64 {
	if denominator <= 0 {
		return 0
	}
	rate := float64(numerator) / float64(denominator) * 100
	return math.Round(rate*100) / 100
}
