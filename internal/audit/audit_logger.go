package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Action represents the type of audited admin action
type Action string

const (
	ActionWalletLocked      Action = "GFE_WALLET_LOCKED"
	ActionWalletUnlocked    Action = "GFE_WALLET_UNLOCKED"
	ActionEarningsAdjusted  Action = "GFE_EARNINGS_ADJUSTED"
	ActionGemPointsAdjusted Action = "GFE_GEM_POINTS_ADJUSTED"
	ActionSettingsUpdated   Action = "GFE_SETTINGS_UPDATED"
	ActionBalanceAdjusted   Action = "WALLET_BALANCE_ADJUSTED"
)

// AuditLog represents an audit log entry in the database
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	ActorID   *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"`
	TargetID  *uuid.UUID `gorm:"type:uuid;index" json:"target_id"`
	Details   string     `gorm:"type:text" json:"details"` // JSON string of additional details
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns an ID when the database default is unavailable
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Logger writes the audit trail for balance-affecting admin actions.
// Writes are best-effort: a failed audit insert is logged and swallowed,
// never propagated, so it cannot roll back or block the underlying
// ledger mutation.
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new audit logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogAction records an admin action against a target principal.
func (l *Logger) LogAction(action Action, actorID, targetID uuid.UUID, details map[string]interface{}) {
	if l == nil || l.db == nil {
		return
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("audit: failed to marshal details for %s: %v", action, err)
		detailsJSON = []byte("{}")
	}

	entry := AuditLog{
		Action:    string(action),
		ActorID:   &actorID,
		TargetID:  &targetID,
		Details:   string(detailsJSON),
		CreatedAt: time.Now(),
	}

	if err := l.db.Create(&entry).Error; err != nil {
		log.Printf("audit: failed to write %s for target %s: %v", action, targetID, err)
	}
}

// Query returns audit entries for a target, newest first.
func (l *Logger) Query(targetID uuid.UUID, limit int) ([]AuditLog, error) {
	var logs []AuditLog
	if limit <= 0 {
		limit = 50
	}
	err := l.db.Where("target_id = ?", targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
