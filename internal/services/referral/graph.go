package referral

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/investours/backend/internal/models"
	"gorm.io/gorm"
)

// GraphService manages the referral graph: one immutable level-1 edge
// per referred principal, with level-2 relationships derived by walking
// one hop up at read time.
type GraphService struct {
	db *gorm.DB
}

// NewGraphService creates a new referral graph service
func NewGraphService(db *gorm.DB) *GraphService {
	return &GraphService{db: db}
}

// AttachReferral links a newly registered principal to the owner of the
// presented referral code. The edge is created exactly once; a second
// attach for the same principal fails with ErrAlreadyReferred. The code
// may be either a principal's referral code or their ID.
func (s *GraphService) AttachReferral(ctx context.Context, newPrincipalID uuid.UUID, code string) (*models.Referral, error) {
	referrer, err := s.resolveReferrer(ctx, code)
	if err != nil {
		return nil, err
	}

	if referrer.ID == newPrincipalID {
		return nil, ErrSelfReferral
	}

	var existing models.Referral
	err = s.db.WithContext(ctx).
		Where("referred_principal_id = ?", newPrincipalID).
		First(&existing).Error
	if err == nil {
		return nil, ErrAlreadyReferred
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	referral := models.Referral{
		ReferrerID:          referrer.ID,
		ReferredPrincipalID: newPrincipalID,
		ReferralCode:        code,
		Status:              models.ReferralStatusActive,
		JoinedAt:            time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&referral).Error; err != nil {
		return nil, err
	}

	// Counter bumps are display caches; a failed bump must not undo
	// the edge, so it is logged and ignored.
	if err := s.db.WithContext(ctx).Model(&models.GFEProfile{}).
		Where("principal_id = ?", referrer.ID).
		Updates(map[string]interface{}{
			"lifetime_referred_users": gorm.Expr("lifetime_referred_users + 1"),
			"sign_ups":                gorm.Expr("sign_ups + 1"),
		}).Error; err != nil {
		log.Printf("referral: failed to bump counters for referrer %s: %v", referrer.ID, err)
	}

	return &referral, nil
}

// resolveReferrer finds the principal owning a referral code, falling
// back to treating the code as a raw principal ID.
func (s *GraphService) resolveReferrer(ctx context.Context, code string) (*models.Principal, error) {
	var referrer models.Principal
	err := s.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&referrer).Error
	if err == nil {
		return &referrer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	id, parseErr := uuid.Parse(code)
	if parseErr != nil {
		return nil, ErrUnknownReferralCode
	}
	err = s.db.WithContext(ctx).First(&referrer, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownReferralCode
	}
	if err != nil {
		return nil, err
	}
	return &referrer, nil
}

// DirectReferrer returns the inbound level-1 edge for a principal, or
// nil when the principal was not referred.
func (s *GraphService) DirectReferrer(ctx context.Context, principalID uuid.UUID) (*models.Referral, error) {
	var edge models.Referral
	err := s.db.WithContext(ctx).
		Where("referred_principal_id = ?", principalID).
		First(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// Ancestors walks up to two levels of the referral graph from a
// principal. Either return may be nil when the chain is shorter.
func (s *GraphService) Ancestors(ctx context.Context, principalID uuid.UUID) (level1, level2 *models.Principal, err error) {
	edge, err := s.DirectReferrer(ctx, principalID)
	if err != nil || edge == nil {
		return nil, nil, err
	}

	var l1 models.Principal
	if err := s.db.WithContext(ctx).First(&l1, "id = ?", edge.ReferrerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	grandEdge, err := s.DirectReferrer(ctx, l1.ID)
	if err != nil {
		return &l1, nil, err
	}
	if grandEdge == nil {
		return &l1, nil, nil
	}

	var l2 models.Principal
	if err := s.db.WithContext(ctx).First(&l2, "id = ?", grandEdge.ReferrerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &l1, nil, nil
		}
		return &l1, nil, err
	}
	return &l1, &l2, nil
}

// Referrals lists a principal's direct referrals, newest first.
func (s *GraphService) Referrals(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]models.Referral, int64, error) {
	var total int64
	q := s.db.WithContext(ctx).Model(&models.Referral{}).Where("referrer_id = ?", referrerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	var edges []models.Referral
	err := s.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("joined_at DESC").
		Limit(limit).Offset(offset).
		Preload("ReferredPrincipal").
		Find(&edges).Error
	return edges, total, err
}

// RecordActivity stamps the inbound edge's last-activity marker.
// Last-write-wins; concurrent stamps differ by milliseconds and any of
// them keeps the edge counted as active.
func (s *GraphService) RecordActivity(ctx context.Context, principalID uuid.UUID) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referred_principal_id = ?", principalID).
		Update("last_activity", now).Error
}

// MarkSubAffiliate flags a referred principal as having become a GFE
// themselves and refreshes the referrer's sub-affiliate count.
func (s *GraphService) MarkSubAffiliate(ctx context.Context, principalID uuid.UUID) error {
	edge, err := s.DirectReferrer(ctx, principalID)
	if err != nil {
		return err
	}
	if edge == nil || edge.IsSubAffiliate {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("id = ?", edge.ID).
		Update("is_sub_affiliate", true).Error; err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ? AND is_sub_affiliate = ?", edge.ReferrerID, true).
		Count(&count).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.GFEProfile{}).
		Where("principal_id = ?", edge.ReferrerID).
		Update("total_sub_affiliates", count).Error
}

// ActiveReferralCount counts direct referrals with activity inside the
// trailing window.
func (s *GraphService) ActiveReferralCount(ctx context.Context, referrerID uuid.UUID, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ? AND last_activity >= ?", referrerID, cutoff).
		Count(&count).Error
	return count, err
}
