package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType is the direction of a wallet transaction.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// TransactionSource identifies which subsystem caused a transaction and
// thereby which balance field it moves.
type TransactionSource string

const (
	SourceInvestment TransactionSource = "investment"
	SourceReferral   TransactionSource = "referral"
	SourceBonus      TransactionSource = "bonus"
	SourceGemPoints  TransactionSource = "gem_points"
	SourceWithdrawal TransactionSource = "withdrawal"
	SourceGFE        TransactionSource = "gfe"
)

// WithdrawalStatus tracks a withdrawal request; transitions are
// forward-only and successful/failed are terminal.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusSuccessful WithdrawalStatus = "successful"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// BankAccount is the payout destination embedded in a wallet.
type BankAccount struct {
	AccountNumber string `gorm:"type:varchar(30)" json:"account_number"`
	BankName      string `gorm:"type:varchar(100)" json:"bank_name"`
	AccountHolder string `gorm:"type:varchar(255)" json:"account_holder"`
}

// Wallet is a principal's mutable balance store. Balances are only ever
// changed together with a Transaction row appended in the same database
// transaction.
type Wallet struct {
	Base
	PrincipalID       uuid.UUID   `gorm:"type:uuid;uniqueIndex;not null" json:"principal_id"`
	Principal         Principal   `gorm:"foreignKey:PrincipalID" json:"-"`
	Balance           Money       `gorm:"type:decimal(20,2);default:0" json:"balance"`
	GemPoints         Money       `gorm:"type:decimal(20,2);default:0" json:"gem_points"`
	GFEBalance        Money       `gorm:"type:decimal(20,2);default:0" json:"gfe_balance"`
	IsGFEWalletLocked bool        `gorm:"default:false" json:"is_gfe_wallet_locked"`
	BankAccount       BankAccount `gorm:"embedded;embeddedPrefix:bank_" json:"bank_account"`
}

// Transaction is an immutable entry in a wallet's transaction log.
// Amount is always positive; Type carries the direction. Rows are never
// updated or deleted.
type Transaction struct {
	Base
	WalletID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Wallet        Wallet            `gorm:"foreignKey:WalletID" json:"-"`
	Amount        Money             `gorm:"type:decimal(20,2);not null" json:"amount"`
	Type          TransactionType   `gorm:"type:varchar(10);not null" json:"type"`
	Narration     string            `gorm:"type:text" json:"narration"`
	Source        TransactionSource `gorm:"type:varchar(20);not null;index" json:"source"`
	RelatedID     *uuid.UUID        `gorm:"type:uuid" json:"related_id"`
	RelatedModel  string            `gorm:"type:varchar(30)" json:"related_model"`
	BalanceBefore Money             `gorm:"type:decimal(20,2)" json:"balance_before"`
	BalanceAfter  Money             `gorm:"type:decimal(20,2)" json:"balance_after"`
}

// WithdrawalRequest is created by withdrawal settlement with the gross
// amount already reserved out of the GFE balance. The fee is realized by
// the payment rail; the wallet is debited the gross amount.
type WithdrawalRequest struct {
	Base
	WalletID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Wallet      Wallet           `gorm:"foreignKey:WalletID" json:"-"`
	PrincipalID uuid.UUID        `gorm:"type:uuid;not null;index" json:"principal_id"`
	Amount      Money            `gorm:"type:decimal(20,2);not null" json:"amount"`
	Method      string           `gorm:"type:varchar(20);not null;default:'bank'" json:"method"`
	Status      WithdrawalStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Fee         Money            `gorm:"type:decimal(20,2);not null" json:"fee"`
	NetAmount   Money            `gorm:"type:decimal(20,2);not null" json:"net_amount"`
	Reference   string           `gorm:"type:varchar(100)" json:"reference"`
	Reason      string           `gorm:"type:text" json:"reason"`
	ProcessedAt *time.Time       `json:"processed_at"`
}
