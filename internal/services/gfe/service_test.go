package gfe

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/investours/backend/internal/audit"
	"github.com/investours/backend/internal/config"
	"github.com/investours/backend/internal/database"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/services/referral"
	"github.com/investours/backend/internal/services/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:gfe_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	auditLogger := audit.NewLogger(db)
	wallets := wallet.NewService(db, auditLogger)
	graph := referral.NewGraphService(db)
	cfg := config.GFEConfig{
		WithdrawalThreshold:     decimal.NewFromInt(5000),
		WithdrawalFeePercentage: decimal.NewFromInt(15),
		OnboardingBonus:         decimal.NewFromInt(2000),
		WithdrawalSchedule:      string(models.WithdrawalScheduleWithin72Hours),
	}
	// Redis is intentionally absent; cache calls degrade to no-ops.
	svc := NewService(db, graph, wallets, nil, auditLogger, cfg, "https://app.investours.test")
	return svc, db
}

func createPrincipal(t *testing.T, db *gorm.DB, tier models.Tier, isGFE bool) *models.Principal {
	t.Helper()
	p := models.Principal{
		Kind:         models.PrincipalKindIndividual,
		FullName:     "Test Principal",
		Tier:         tier,
		IsGFE:        isGFE,
		ReferralCode: "REF-" + uuid.New().String()[:8],
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func createEarning(t *testing.T, db *gorm.DB, referralID, beneficiaryID uuid.UUID, typ models.EarningType, amount int64, narration string) {
	t.Helper()
	now := time.Now()
	e := models.Earning{
		ReferralID:    referralID,
		BeneficiaryID: beneficiaryID,
		Level:         1,
		Amount:        models.NewMoneyFromInt(amount),
		Type:          typ,
		Narration:     narration,
		Status:        models.EarningStatusPaid,
		PaidAt:        &now,
	}
	require.NoError(t, db.Create(&e).Error)
}

func TestGetOrCreateProfile(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	gfeUser := createPrincipal(t, db, models.TierPremium, true)

	profile, err := svc.GetOrCreateProfile(ctx, gfeUser)
	require.NoError(t, err)
	assert.Equal(t, gfeUser.ID, profile.PrincipalID)
	assert.Contains(t, profile.ReferralLink, gfeUser.ReferralCode)
	assert.True(t, strings.HasPrefix(profile.QRCode, "data:image/png;base64,"))
	assert.True(t, profile.WithdrawalThreshold.Equal(decimal.NewFromInt(5000)))
	assert.True(t, profile.WithdrawalFeePercentage.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, models.WithdrawalScheduleWithin72Hours, profile.WithdrawalSchedule)

	// Second call returns the existing profile.
	again, err := svc.GetOrCreateProfile(ctx, gfeUser)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.GFEProfile{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateProfileRejectsNonGFE(t *testing.T) {
	svc, db := newTestService(t)
	plain := createPrincipal(t, db, models.TierFree, false)

	_, err := svc.GetOrCreateProfile(context.Background(), plain)
	assert.ErrorIs(t, err, ErrNotGFE)
}

func TestEarningsBreakdown(t *testing.T) {
	svc, db := newTestService(t)
	graph := referral.NewGraphService(db)
	ctx := context.Background()

	referrer := createPrincipal(t, db, models.TierPremium, true)
	referred := createPrincipal(t, db, models.TierFree, false)
	other := createPrincipal(t, db, models.TierFree, false)
	edge, err := graph.AttachReferral(ctx, referred.ID, referrer.ReferralCode)
	require.NoError(t, err)
	otherEdge, err := graph.AttachReferral(ctx, other.ID, referrer.ReferralCode)
	require.NoError(t, err)

	createEarning(t, db, edge.ID, referrer.ID, models.EarningTypeDirectSubscriber, 350, "direct_subscriber commission")
	createEarning(t, db, edge.ID, referrer.ID, models.EarningTypeDirectInvestor, 4500, "direct_investor commission")
	createEarning(t, db, edge.ID, referrer.ID, models.EarningTypeIndirectInvestor, 600, "indirect_investor commission")
	createEarning(t, db, edge.ID, referrer.ID, models.EarningTypeBonus, 2000, models.OnboardingBonusNarration)
	createEarning(t, db, otherEdge.ID, referrer.ID, models.EarningTypeBonus, 500, "Loyalty campaign bonus")

	breakdown, err := svc.EarningsBreakdown(ctx, referrer.ID)
	require.NoError(t, err)

	assert.True(t, breakdown.DirectSubscribers.Equal(decimal.NewFromInt(350)))
	assert.True(t, breakdown.DirectInvestors.Equal(decimal.NewFromInt(4500)))
	assert.True(t, breakdown.IndirectInvestors.Equal(decimal.NewFromInt(600)))
	assert.True(t, breakdown.IndirectSubscribers.IsZero())

	// Onboarding and admin bonuses report as disjoint buckets even
	// though they share the bonus earning type.
	assert.True(t, breakdown.OnboardingBonus.Equal(decimal.NewFromInt(2000)))
	assert.True(t, breakdown.Bonuses.Equal(decimal.NewFromInt(500)))
}

func TestRefreshMetrics(t *testing.T) {
	svc, db := newTestService(t)
	graph := referral.NewGraphService(db)
	ctx := context.Background()

	referrer := createPrincipal(t, db, models.TierPremium, true)
	_, err := svc.GetOrCreateProfile(ctx, referrer)
	require.NoError(t, err)

	var edge *models.Referral
	for i := 0; i < 2; i++ {
		referred := createPrincipal(t, db, models.TierFree, false)
		edge, err = graph.AttachReferral(ctx, referred.ID, referrer.ReferralCode)
		require.NoError(t, err)
	}
	createEarning(t, db, edge.ID, referrer.ID, models.EarningTypeDirectInvestor, 4500, "direct_investor commission")

	require.NoError(t, svc.RefreshMetrics(ctx, referrer.ID))

	var profile models.GFEProfile
	require.NoError(t, db.Where("principal_id = ?", referrer.ID).First(&profile).Error)
	assert.EqualValues(t, 2, profile.LifetimeReferredUsers)
	assert.True(t, profile.TotalEarnings.Equal(decimal.NewFromInt(4500)))
}

func TestRefreshMetricsUnknownProfile(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.RefreshMetrics(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestTrackClick(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	gfeUser := createPrincipal(t, db, models.TierFree, true)
	_, err := svc.GetOrCreateProfile(ctx, gfeUser)
	require.NoError(t, err)

	require.NoError(t, svc.TrackClick(ctx, gfeUser.ReferralCode, "1.2.3.4"))
	require.NoError(t, svc.TrackClick(ctx, gfeUser.ReferralCode, "5.6.7.8"))
	// Unknown codes are silently ignored.
	require.NoError(t, svc.TrackClick(ctx, "NO-SUCH-CODE", "1.2.3.4"))

	var profile models.GFEProfile
	require.NoError(t, db.Where("principal_id = ?", gfeUser.ID).First(&profile).Error)
	assert.EqualValues(t, 2, profile.ClickThroughs)
}

func TestFunnelCounters(t *testing.T) {
	svc, db := newTestService(t)
	graph := referral.NewGraphService(db)
	ctx := context.Background()

	referrer := createPrincipal(t, db, models.TierFree, true)
	_, err := svc.GetOrCreateProfile(ctx, referrer)
	require.NoError(t, err)

	referred := createPrincipal(t, db, models.TierFree, false)
	_, err = graph.AttachReferral(ctx, referred.ID, referrer.ReferralCode)
	require.NoError(t, err)

	require.NoError(t, svc.RecordVerified(ctx, referred.ID))
	require.NoError(t, svc.RecordSubscribed(ctx, referred.ID))
	require.NoError(t, svc.RecordInvesting(ctx, referred.ID))

	// Orphans bump nothing and do not error.
	orphan := createPrincipal(t, db, models.TierFree, false)
	require.NoError(t, svc.RecordInvesting(ctx, orphan.ID))

	var profile models.GFEProfile
	require.NoError(t, db.Where("principal_id = ?", referrer.ID).First(&profile).Error)
	assert.EqualValues(t, 1, profile.VerifiedUsers)
	assert.EqualValues(t, 1, profile.SubscribedUsers)
	assert.EqualValues(t, 1, profile.InvestingUsers)
}

func TestLeaderboardOrderIsDeterministic(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	makeGFE := func(earnings, referred int64) *models.Principal {
		p := createPrincipal(t, db, models.TierFree, true)
		profile := models.GFEProfile{
			PrincipalID:           p.ID,
			TotalEarnings:         models.NewMoneyFromInt(earnings),
			LifetimeReferredUsers: referred,
		}
		require.NoError(t, db.Create(&profile).Error)
		return p
	}

	top := makeGFE(9000, 3)
	tiedMoreReferrals := makeGFE(5000, 10)
	tiedFewerReferrals := makeGFE(5000, 2)
	bottom := makeGFE(100, 50)

	entries, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, top.ID, entries[0].PrincipalID)
	assert.Equal(t, tiedMoreReferrals.ID, entries[1].PrincipalID, "ties break on referred-user count")
	assert.Equal(t, tiedFewerReferrals.ID, entries[2].PrincipalID)
	assert.Equal(t, bottom.ID, entries[3].PrincipalID)

	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
	}

	// Repeated reads return the same order.
	again, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	for i := range entries {
		assert.Equal(t, entries[i].PrincipalID, again[i].PrincipalID)
	}
}

func TestAwardGemPoints(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	gfeUser := createPrincipal(t, db, models.TierFree, true)
	admin := createPrincipal(t, db, models.TierFree, false)
	_, err := svc.GetOrCreateProfile(ctx, gfeUser)
	require.NoError(t, err)

	require.NoError(t, svc.AwardGemPoints(ctx, admin.ID, gfeUser.ID, decimal.NewFromInt(150), "campaign reward"))

	var w models.Wallet
	require.NoError(t, db.Where("principal_id = ?", gfeUser.ID).First(&w).Error)
	assert.True(t, w.GemPoints.Equal(decimal.NewFromInt(150)))

	var profile models.GFEProfile
	require.NoError(t, db.Where("principal_id = ?", gfeUser.ID).First(&profile).Error)
	assert.True(t, profile.GemPoints.Equal(decimal.NewFromInt(150)))
}

func TestUpdateSettings(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	gfeUser := createPrincipal(t, db, models.TierFree, true)
	admin := createPrincipal(t, db, models.TierFree, false)
	_, err := svc.GetOrCreateProfile(ctx, gfeUser)
	require.NoError(t, err)

	threshold := decimal.NewFromInt(10000)
	schedule := models.WithdrawalScheduleWeekly
	profile, err := svc.UpdateSettings(ctx, admin.ID, gfeUser.ID, &threshold, nil, &schedule)
	require.NoError(t, err)

	require.NoError(t, db.Where("principal_id = ?", gfeUser.ID).First(profile).Error)
	assert.True(t, profile.WithdrawalThreshold.Equal(decimal.NewFromInt(10000)))
	assert.True(t, profile.WithdrawalFeePercentage.Equal(decimal.NewFromInt(15)), "unset fields stay untouched")
	assert.Equal(t, models.WithdrawalScheduleWeekly, profile.WithdrawalSchedule)

	var logs []audit.AuditLog
	require.NoError(t, db.Where("target_id = ?", gfeUser.ID).Find(&logs).Error)
	require.NotEmpty(t, logs)
}
