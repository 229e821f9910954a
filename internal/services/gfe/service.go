package gfe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/investours/backend/internal/audit"
	"github.com/investours/backend/internal/cache"
	"github.com/investours/backend/internal/config"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/services/referral"
	"github.com/investours/backend/internal/services/wallet"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrNotGFE means the principal has not been enrolled as a
	// Grassroots Financial Educator.
	ErrNotGFE = errors.New("principal is not a gfe")

	// ErrProfileNotFound means no GFE profile exists for the principal.
	ErrProfileNotFound = errors.New("gfe profile not found")
)

const activityWindow = 30 * 24 * time.Hour

// Service exposes the GFE-facing view of the referral program: the
// profile rollup, earnings breakdown, funnel tracking and leaderboard.
// All numbers it writes are display caches; the ledger of record stays
// in the wallet and earning tables.
type Service struct {
	db          *gorm.DB
	graph       *referral.GraphService
	wallets     *wallet.Service
	cache       *cache.Store
	audit       *audit.Logger
	cfg         config.GFEConfig
	frontendURL string
}

// NewService creates a new GFE service
func NewService(db *gorm.DB, graph *referral.GraphService, wallets *wallet.Service, store *cache.Store, auditLogger *audit.Logger, cfg config.GFEConfig, frontendURL string) *Service {
	return &Service{
		db:          db,
		graph:       graph,
		wallets:     wallets,
		cache:       store,
		audit:       auditLogger,
		cfg:         cfg,
		frontendURL: frontendURL,
	}
}

// GetOrCreateProfile returns the principal's GFE profile, creating it
// on first access with configured defaults, a referral link and a QR
// code. The QR render is best-effort; a failure leaves the field empty.
func (s *Service) GetOrCreateProfile(ctx context.Context, principal *models.Principal) (*models.GFEProfile, error) {
	if !principal.GFEEnabled() {
		return nil, ErrNotGFE
	}

	var profile models.GFEProfile
	err := s.db.WithContext(ctx).Where("principal_id = ?", principal.ID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	code := principal.ReferralCode
	if code == "" {
		code = principal.ID.String()
	}
	link := fmt.Sprintf("%s/signup?ref=%s", s.frontendURL, code)

	qrCode, qrErr := GenerateQRCode(link)
	if qrErr != nil {
		log.Printf("gfe: failed to generate qr code for %s: %v", principal.ID, qrErr)
	}

	profile = models.GFEProfile{
		PrincipalID:             principal.ID,
		WithdrawalThreshold:     models.NewMoney(s.cfg.WithdrawalThreshold),
		WithdrawalFeePercentage: models.NewMoney(s.cfg.WithdrawalFeePercentage),
		WithdrawalSchedule:      models.WithdrawalSchedule(s.cfg.WithdrawalSchedule),
		ReferralLink:            link,
		QRCode:                  qrCode,
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create gfe profile: %w", err)
	}

	// Mark the inbound edge if this principal was themselves referred;
	// their referrer now has a sub-affiliate.
	if err := s.graph.MarkSubAffiliate(ctx, principal.ID); err != nil {
		log.Printf("gfe: failed to mark sub-affiliate for %s: %v", principal.ID, err)
	}

	return &profile, nil
}

// Overview is the dashboard payload for a GFE.
type Overview struct {
	Profile     models.GFEProfile        `json:"profile"`
	Breakdown   models.EarningsBreakdown `json:"earnings_breakdown"`
	Funnel      Funnel                   `json:"funnel"`
	FunnelRates FunnelRates              `json:"funnel_rates"`
	Wallet      *models.Wallet           `json:"wallet"`
}

// GetOverview refreshes the profile's display caches from the ledger
// and returns the profile with the earnings breakdown and wallet.
func (s *Service) GetOverview(ctx context.Context, principal *models.Principal) (*Overview, error) {
	profile, err := s.GetOrCreateProfile(ctx, principal)
	if err != nil {
		return nil, err
	}

	if err := s.RefreshMetrics(ctx, principal.ID); err != nil {
		log.Printf("gfe: metrics refresh for %s failed: %v", principal.ID, err)
	}
	if err := s.db.WithContext(ctx).Where("principal_id = ?", principal.ID).First(profile).Error; err != nil {
		return nil, err
	}

	breakdown, err := s.EarningsBreakdown(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	w, err := s.wallets.GetWallet(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	funnel := Funnel{
		ClickThroughs:   profile.ClickThroughs,
		SignUps:         profile.SignUps,
		VerifiedUsers:   profile.VerifiedUsers,
		SubscribedUsers: profile.SubscribedUsers,
		InvestingUsers:  profile.InvestingUsers,
	}

	return &Overview{
		Profile:     *profile,
		Breakdown:   *breakdown,
		Funnel:      funnel,
		FunnelRates: funnel.Rates(),
		Wallet:      w,
	}, nil
}

// EarningsBreakdown sums a beneficiary's paid earnings by type.
func (s *Service) EarningsBreakdown(ctx context.Context, principalID uuid.UUID) (*models.EarningsBreakdown, error) {
	type row struct {
		Type  models.EarningType
		Total decimal.Decimal
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Earning{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("beneficiary_id = ? AND status = ?", principalID, models.EarningStatusPaid).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var b models.EarningsBreakdown
	for _, r := range rows {
		amount := models.NewMoney(r.Total)
		switch r.Type {
		case models.EarningTypeDirectSubscriber:
			b.DirectSubscribers = amount
		case models.EarningTypeDirectInvestor:
			b.DirectInvestors = amount
		case models.EarningTypeIndirectSubscriber:
			b.IndirectSubscribers = amount
		case models.EarningTypeIndirectInvestor:
			b.IndirectInvestors = amount
		case models.EarningTypeBonus:
			b.Bonuses = amount
		}
	}

	// Onboarding bonuses and admin-granted bonuses share the bonus
	// earning type but report as disjoint buckets.
	var onboarding decimal.Decimal
	err = s.db.WithContext(ctx).Model(&models.Earning{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("beneficiary_id = ? AND status = ? AND type = ? AND narration = ?",
			principalID, models.EarningStatusPaid, models.EarningTypeBonus, models.OnboardingBonusNarration).
		Scan(&onboarding).Error
	if err != nil {
		return nil, err
	}
	b.OnboardingBonus = models.NewMoney(onboarding)
	b.Bonuses = models.NewMoney(b.Bonuses.Sub(onboarding))

	return &b, nil
}

// RefreshMetrics recomputes a profile's display caches from the
// referral and earning tables.
func (s *Service) RefreshMetrics(ctx context.Context, principalID uuid.UUID) error {
	var profile models.GFEProfile
	err := s.db.WithContext(ctx).Where("principal_id = ?", principalID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProfileNotFound
	}
	if err != nil {
		return err
	}

	var referred int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ?", principalID).
		Count(&referred).Error; err != nil {
		return err
	}

	var subAffiliates int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ? AND is_sub_affiliate = ?", principalID, true).
		Count(&subAffiliates).Error; err != nil {
		return err
	}

	active, err := s.graph.ActiveReferralCount(ctx, principalID, activityWindow)
	if err != nil {
		return err
	}

	var totalEarnings decimal.Decimal
	if err := s.db.WithContext(ctx).Model(&models.Earning{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("beneficiary_id = ? AND status = ?", principalID, models.EarningStatusPaid).
		Scan(&totalEarnings).Error; err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&models.GFEProfile{}).
		Where("principal_id = ?", principalID).
		Updates(map[string]interface{}{
			"lifetime_referred_users":   referred,
			"total_sub_affiliates":      subAffiliates,
			"active_users_last_30_days": active,
			"total_earnings":            models.NewMoney(totalEarnings),
			"conversion_rate":           ConversionRate(profile.InvestingUsers, profile.SignUps),
		}).Error
}

// TrackClick counts a click-through on a referral link, deduplicating
// repeat clicks from the same visitor inside the cache window. Unknown
// codes are ignored so probing cannot enumerate valid ones.
func (s *Service) TrackClick(ctx context.Context, referralCode, visitorKey string) error {
	seen, err := s.cache.SeenClick(ctx, referralCode, visitorKey)
	if err != nil {
		log.Printf("gfe: click dedupe check failed: %v", err)
	}
	if seen {
		return nil
	}

	var principal models.Principal
	err = s.db.WithContext(ctx).Where("referral_code = ?", referralCode).First(&principal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&models.GFEProfile{}).
		Where("principal_id = ?", principal.ID).
		Update("click_throughs", gorm.Expr("click_throughs + 1")).Error
}

// RecordVerified bumps the referrer's verified-users funnel counter
// when a referred principal completes verification.
func (s *Service) RecordVerified(ctx context.Context, principalID uuid.UUID) error {
	return s.bumpFunnel(ctx, principalID, "verified_users")
}

// RecordSubscribed bumps the referrer's subscribed-users funnel counter.
func (s *Service) RecordSubscribed(ctx context.Context, principalID uuid.UUID) error {
	return s.bumpFunnel(ctx, principalID, "subscribed_users")
}

// RecordInvesting bumps the referrer's investing-users funnel counter.
func (s *Service) RecordInvesting(ctx context.Context, principalID uuid.UUID) error {
	return s.bumpFunnel(ctx, principalID, "investing_users")
}

func (s *Service) bumpFunnel(ctx context.Context, principalID uuid.UUID, column string) error {
	edge, err := s.graph.DirectReferrer(ctx, principalID)
	if err != nil || edge == nil {
		return err
	}

	if err := s.graph.RecordActivity(ctx, principalID); err != nil {
		log.Printf("gfe: failed to stamp activity for %s: %v", principalID, err)
	}

	return s.db.WithContext(ctx).Model(&models.GFEProfile{}).
		Where("principal_id = ?", edge.ReferrerID).
		Update(column, gorm.Expr(column+" + 1")).Error
}

// LeaderboardEntry is one row of the GFE leaderboard.
type LeaderboardEntry struct {
	PrincipalID           uuid.UUID    `json:"principal_id"`
	FullName              string       `json:"full_name"`
	TotalEarnings         models.Money `json:"total_earnings"`
	LifetimeReferredUsers int64        `json:"lifetime_referred_users"`
	Rank                  int          `json:"rank"`
}

// Leaderboard returns GFEs ranked by total earnings. Ties break on
// referred-user count, then on principal creation time, so the order is
// deterministic. Results are served from cache when fresh.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var entries []LeaderboardEntry
	hit, err := s.cache.GetLeaderboard(ctx, &entries)
	if err != nil {
		log.Printf("gfe: leaderboard cache read failed: %v", err)
	}
	if hit && len(entries) >= limit {
		return entries[:limit], nil
	}

	entries = entries[:0]
	err = s.db.WithContext(ctx).Model(&models.GFEProfile{}).
		Select("gfe_profiles.principal_id, principals.full_name, gfe_profiles.total_earnings, gfe_profiles.lifetime_referred_users").
		Joins("JOIN principals ON principals.id = gfe_profiles.principal_id").
		Order("gfe_profiles.total_earnings DESC, gfe_profiles.lifetime_referred_users DESC, principals.created_at ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	if err := s.cache.CacheLeaderboard(ctx, entries); err != nil {
		log.Printf("gfe: leaderboard cache write failed: %v", err)
	}
	return entries, nil
}

// AwardGemPoints credits gem points to a principal's wallet and mirrors
// the total on the profile. Admin-only; audited.
func (s *Service) AwardGemPoints(ctx context.Context, actorID, principalID uuid.UUID, amount decimal.Decimal, narration string) error {
	if _, err := s.wallets.Credit(ctx, wallet.Posting{
		PrincipalID: principalID,
		Amount:      amount,
		Source:      models.SourceGemPoints,
		Narration:   narration,
	}); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&models.GFEProfile{}).
		Where("principal_id = ?", principalID).
		Update("gem_points", gorm.Expr("gem_points + ?", models.NewMoney(amount))).Error; err != nil {
		log.Printf("gfe: failed to mirror gem points for %s: %v", principalID, err)
	}

	s.audit.LogAction(audit.ActionGemPointsAdjusted, actorID, principalID, map[string]interface{}{
		"amount":    amount.String(),
		"narration": narration,
	})
	return nil
}

// UpdateSettings changes a profile's withdrawal settings. Admin-only;
// audited. Nil fields are left unchanged.
func (s *Service) UpdateSettings(ctx context.Context, actorID, principalID uuid.UUID, threshold, feePercentage *decimal.Decimal, schedule *models.WithdrawalSchedule) (*models.GFEProfile, error) {
	var profile models.GFEProfile
	err := s.db.WithContext(ctx).Where("principal_id = ?", principalID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	details := map[string]interface{}{}
	if threshold != nil {
		updates["withdrawal_threshold"] = models.NewMoney(*threshold)
		details["withdrawal_threshold"] = threshold.String()
	}
	if feePercentage != nil {
		updates["withdrawal_fee_percentage"] = models.NewMoney(*feePercentage)
		details["withdrawal_fee_percentage"] = feePercentage.String()
	}
	if schedule != nil {
		updates["withdrawal_schedule"] = *schedule
		details["withdrawal_schedule"] = string(*schedule)
	}
	if len(updates) == 0 {
		return &profile, nil
	}

	if err := s.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.audit.LogAction(audit.ActionSettingsUpdated, actorID, principalID, details)
	return &profile, nil
}
