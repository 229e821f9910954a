package referral

import (
	"context"
	"testing"

	"github.com/investours/backend/internal/audit"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/services/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestEngine(t *testing.T) (*Engine, *wallet.Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	wallets := wallet.NewService(db, audit.NewLogger(db))
	engine := NewEngine(db, wallets, decimal.NewFromInt(2000))
	return engine, wallets, db
}

func TestRateTable(t *testing.T) {
	cases := []struct {
		tier models.Tier
		typ  models.EarningType
		want string
	}{
		{models.TierFree, models.EarningTypeDirectSubscriber, "0.30"},
		{models.TierFree, models.EarningTypeDirectInvestor, "0.40"},
		{models.TierFree, models.EarningTypeIndirectInvestor, "0.05"},
		{models.TierPremium, models.EarningTypeDirectInvestor, "0.45"},
		{models.TierPremium, models.EarningTypeIndirectSubscriber, "0.12"},
		{models.TierExclusive, models.EarningTypeDirectInvestor, "0.50"},
		{models.TierExclusive, models.EarningTypeIndirectInvestor, "0.08"},
	}
	for _, c := range cases {
		got := Rate(c.typ, c.tier)
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)),
			"rate for %s/%s: got %s want %s", c.tier, c.typ, got, c.want)
	}

	assert.True(t, Rate(models.EarningTypeBonus, models.TierFree).IsZero(),
		"bonus has no rate, it is a flat amount")
	assert.True(t, Rate(models.EarningTypeDirectInvestor, models.Tier("Unknown")).IsZero())
}

func TestAttributeTwoLevels(t *testing.T) {
	engine, wallets, db := newTestEngine(t)
	graph := NewGraphService(db)
	ctx := context.Background()

	a := createPrincipal(t, db, models.TierExclusive, true)
	b := createPrincipal(t, db, models.TierFree, true)
	c := createPrincipal(t, db, models.TierFree, false)

	_, err := graph.AttachReferral(ctx, b.ID, a.ReferralCode)
	require.NoError(t, err)
	_, err = graph.AttachReferral(ctx, c.ID, b.ReferralCode)
	require.NoError(t, err)

	earnings, err := engine.Attribute(ctx, AttributionInput{
		TriggeringPrincipalID: c.ID,
		Event:                 EventInvested,
		BaseAmount:            decimal.NewFromInt(100000),
		EventKey:              "inv-001",
	})
	require.NoError(t, err)
	require.Len(t, earnings, 2)

	// B, Free tier, earns the direct investor rate; A, Exclusive tier,
	// earns its own indirect investor rate against the same base.
	direct, indirect := earnings[0], earnings[1]
	assert.Equal(t, b.ID, direct.BeneficiaryID)
	assert.Equal(t, 1, direct.Level)
	assert.Equal(t, models.EarningTypeDirectInvestor, direct.Type)
	assert.True(t, direct.Amount.Equal(decimal.NewFromInt(40000)))
	assert.Equal(t, models.EarningStatusPaid, direct.Status)
	assert.NotNil(t, direct.PaidAt)

	assert.Equal(t, a.ID, indirect.BeneficiaryID)
	assert.Equal(t, 2, indirect.Level)
	assert.Equal(t, models.EarningTypeIndirectInvestor, indirect.Type)
	assert.True(t, indirect.Amount.Equal(decimal.NewFromInt(8000)))

	wb, err := wallets.GetWallet(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, wb.GFEBalance.Equal(decimal.NewFromInt(40000)))

	wa, err := wallets.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, wa.GFEBalance.Equal(decimal.NewFromInt(8000)))

	// One earning row and one transaction row per beneficiary.
	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("source = ?", models.SourceReferral).
		Count(&txnCount).Error)
	assert.EqualValues(t, 2, txnCount)
}

func TestAttributeSubscriptionUsesSubscriberRates(t *testing.T) {
	engine, _, db := newTestEngine(t)
	graph := NewGraphService(db)
	ctx := context.Background()

	referrer := createPrincipal(t, db, models.TierPremium, true)
	referred := createPrincipal(t, db, models.TierFree, false)
	_, err := graph.AttachReferral(ctx, referred.ID, referrer.ReferralCode)
	require.NoError(t, err)

	earnings, err := engine.Attribute(ctx, AttributionInput{
		TriggeringPrincipalID: referred.ID,
		Event:                 EventSubscribed,
		BaseAmount:            decimal.NewFromInt(1000),
		EventKey:              "sub-001",
	})
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, models.EarningTypeDirectSubscriber, earnings[0].Type)
	assert.True(t, earnings[0].Amount.Equal(decimal.NewFromInt(350)), "premium direct subscriber rate is 0.35")
}

func TestAttributeIsIdempotent(t *testing.T) {
	engine, wallets, db := newTestEngine(t)
	graph := NewGraphService(db)
	ctx := context.Background()

	referrer := createPrincipal(t, db, models.TierFree, true)
	referred := createPrincipal(t, db, models.TierFree, false)
	_, err := graph.AttachReferral(ctx, referred.ID, referrer.ReferralCode)
	require.NoError(t, err)

	input := AttributionInput{
		TriggeringPrincipalID: referred.ID,
		Event:                 EventInvested,
		BaseAmount:            decimal.NewFromInt(5000),
		EventKey:              "inv-replayed",
	}

	first, err := engine.Attribute(ctx, input)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := engine.Attribute(ctx, input)
	require.NoError(t, err)
	assert.Empty(t, second, "replayed event attributes nothing")

	w, err := wallets.GetWallet(ctx, referrer.ID)
	require.NoError(t, err)
	assert.True(t, w.GFEBalance.Equal(decimal.NewFromInt(2000)), "free direct investor rate applied once")

	var markers int64
	require.NoError(t, db.Model(&models.AttributedEvent{}).Count(&markers).Error)
	assert.EqualValues(t, 1, markers)
}

func TestAttributeWithoutReferrer(t *testing.T) {
	engine, _, db := newTestEngine(t)
	orphan := createPrincipal(t, db, models.TierFree, false)

	earnings, err := engine.Attribute(context.Background(), AttributionInput{
		TriggeringPrincipalID: orphan.ID,
		Event:                 EventInvested,
		BaseAmount:            decimal.NewFromInt(5000),
		EventKey:              "inv-orphan",
	})
	require.NoError(t, err)
	assert.Empty(t, earnings)
}

func TestAttributeIgnoresNonPositiveBase(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	earnings, err := engine.Attribute(context.Background(), AttributionInput{
		Event:      EventInvested,
		BaseAmount: decimal.Zero,
		EventKey:   "inv-zero",
	})
	require.NoError(t, err)
	assert.Empty(t, earnings)
}

func TestAttributeRejectsUnknownEvent(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Attribute(context.Background(), AttributionInput{
		Event:      Event("churned"),
		BaseAmount: decimal.NewFromInt(100),
		EventKey:   "evt-odd",
	})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestOnboardingBonusSweepPaysOnce(t *testing.T) {
	engine, wallets, db := newTestEngine(t)
	graph := NewGraphService(db)
	ctx := context.Background()

	referrer := createPrincipal(t, db, models.TierFree, true)
	for i := 0; i < 3; i++ {
		referred := createPrincipal(t, db, models.TierFree, false)
		_, err := graph.AttachReferral(ctx, referred.ID, referrer.ReferralCode)
		require.NoError(t, err)
	}

	paid, err := engine.PayOnboardingBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, paid)

	// A second sweep finds nothing to pay.
	paid, err = engine.PayOnboardingBonuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, paid)

	w, err := wallets.GetWallet(ctx, referrer.ID)
	require.NoError(t, err)
	assert.True(t, w.GFEBalance.Equal(decimal.NewFromInt(6000)), "2000 per direct referral, once each")

	var bonuses []models.Earning
	require.NoError(t, db.Where("type = ?", models.EarningTypeBonus).Find(&bonuses).Error)
	assert.Len(t, bonuses, 3)
	for _, b := range bonuses {
		assert.Equal(t, models.EarningStatusPaid, b.Status)
		assert.Equal(t, referrer.ID, b.BeneficiaryID)
	}
}

func TestOnboardingBonusUniquePerEdge(t *testing.T) {
	engine, _, db := newTestEngine(t)
	graph := NewGraphService(db)
	ctx := context.Background()

	referrer := createPrincipal(t, db, models.TierFree, true)
	referred := createPrincipal(t, db, models.TierFree, false)
	edge, err := graph.AttachReferral(ctx, referred.ID, referrer.ReferralCode)
	require.NoError(t, err)

	paid, err := engine.PayOnboardingBonuses(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, paid)

	// A second bonus row for the same edge cannot commit: the unique
	// index is what stops two overlapping sweeps from both paying the
	// edge after both read it as unpaid.
	racer := models.Earning{
		ReferralID:    edge.ID,
		BeneficiaryID: referrer.ID,
		Level:         1,
		Amount:        models.NewMoneyFromInt(2000),
		Type:          models.EarningTypeBonus,
		Narration:     models.OnboardingBonusNarration,
		Status:        models.EarningStatusPending,
	}
	err = db.Create(&racer).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	// The index is scoped to bonus rows; commissions on the same edge
	// are unaffected.
	commission := models.Earning{
		ReferralID:    edge.ID,
		BeneficiaryID: referrer.ID,
		Level:         1,
		Amount:        models.NewMoneyFromInt(100),
		Type:          models.EarningTypeDirectInvestor,
		Narration:     "direct_investor commission",
		Status:        models.EarningStatusPending,
	}
	require.NoError(t, db.Create(&commission).Error)

	var bonusCount int64
	require.NoError(t, db.Model(&models.Earning{}).
		Where("referral_id = ? AND type = ?", edge.ID, models.EarningTypeBonus).
		Count(&bonusCount).Error)
	assert.EqualValues(t, 1, bonusCount)
}
