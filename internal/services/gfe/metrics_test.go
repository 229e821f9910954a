package gfe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversionRate(t *testing.T) {
	assert.Equal(t, 0.0, ConversionRate(5, 0), "no sign-ups yields zero, not a division error")
	assert.Equal(t, 0.0, ConversionRate(0, 10))
	assert.Equal(t, 50.0, ConversionRate(5, 10))
	assert.Equal(t, 100.0, ConversionRate(10, 10))
	assert.Equal(t, 33.33, ConversionRate(1, 3), "rounded to two decimal places")
}

func TestFunnelRates(t *testing.T) {
	f := Funnel{
		ClickThroughs:   200,
		SignUps:         100,
		VerifiedUsers:   50,
		SubscribedUsers: 25,
		InvestingUsers:  10,
	}
	rates := f.Rates()
	assert.Equal(t, 50.0, rates.ClickToSignUp)
	assert.Equal(t, 50.0, rates.SignUpToVerified)
	assert.Equal(t, 50.0, rates.VerifiedToSubscribed)
	assert.Equal(t, 40.0, rates.SubscribedToInvesting)

	assert.Equal(t, FunnelRates{}, Funnel{}.Rates(), "empty funnel yields all zeros")
}
