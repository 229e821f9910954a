package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/investours/backend/internal/models"
	"github.com/investours/backend/internal/services/gfe"
	"github.com/investours/backend/internal/services/referral"
	"github.com/investours/backend/internal/services/wallet"
	"gorm.io/gorm"
)

// Worker runs the periodic jobs behind the referral program: the
// onboarding bonus sweep, the metrics refresh and the withdrawal
// settlement poller. Every job is idempotent; overlapping or repeated
// runs change nothing that a single run would not.
type Worker struct {
	db        *gorm.DB
	engine    *referral.Engine
	gfe       *gfe.Service
	wallets   *wallet.Service
	scheduler *gocron.Scheduler
}

// NewWorker creates a new background worker
func NewWorker(db *gorm.DB, engine *referral.Engine, gfeService *gfe.Service, wallets *wallet.Service) *Worker {
	return &Worker{
		db:        db,
		engine:    engine,
		gfe:       gfeService,
		wallets:   wallets,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start registers and launches the job schedule.
func (w *Worker) Start() error {
	if _, err := w.scheduler.Every(10).Minutes().Do(w.RunBonusSweep); err != nil {
		return err
	}
	if _, err := w.scheduler.Every(15).Minutes().Do(w.RunMetricsRefresh); err != nil {
		return err
	}
	if _, err := w.scheduler.Every(5).Minutes().Do(w.RunSettlementPoll); err != nil {
		return err
	}

	w.scheduler.StartAsync()
	log.Println("background worker started")
	return nil
}

// Stop halts the schedule, letting in-flight jobs finish.
func (w *Worker) Stop() {
	w.scheduler.Stop()
	log.Println("background worker stopped")
}

// RunBonusSweep pays the flat onboarding bonus for referral edges that
// have not received it yet.
func (w *Worker) RunBonusSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	paid, err := w.engine.PayOnboardingBonuses(ctx)
	if err != nil {
		log.Printf("jobs: onboarding bonus sweep failed: %v", err)
		return
	}
	if paid > 0 {
		log.Printf("jobs: paid %d onboarding bonuses", paid)
	}
}

// RunMetricsRefresh recomputes display caches for every GFE profile.
func (w *Worker) RunMetricsRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var profiles []models.GFEProfile
	if err := w.db.WithContext(ctx).Select("principal_id").Find(&profiles).Error; err != nil {
		log.Printf("jobs: metrics refresh query failed: %v", err)
		return
	}

	for _, p := range profiles {
		if err := w.gfe.RefreshMetrics(ctx, p.PrincipalID); err != nil {
			log.Printf("jobs: metrics refresh for %s failed: %v", p.PrincipalID, err)
		}
	}
}

// RunSettlementPoll hands pending withdrawal requests to the payment
// rail by moving them to processing. Terminal settlement (successful or
// failed, with the failed-path refund) happens when the rail reports
// back through the wallet service.
func (w *Worker) RunSettlementPoll() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pending, err := w.wallets.PendingWithdrawals(ctx, 50)
	if err != nil {
		log.Printf("jobs: settlement poll failed: %v", err)
		return
	}

	for _, req := range pending {
		if err := w.wallets.MarkProcessing(ctx, req.ID); err != nil {
			log.Printf("jobs: failed to move withdrawal %s to processing: %v", req.ID, err)
		}
	}
	if len(pending) > 0 {
		log.Printf("jobs: moved %d withdrawals to processing", len(pending))
	}
}
