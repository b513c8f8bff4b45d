package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType defines the type of a money movement
type TransactionType string

const (
	TransactionTypeTransferSend    TransactionType = "TRANSFER_SEND"
	TransactionTypeTransferReceive TransactionType = "TRANSFER_RECEIVE"
	TransactionTypeDeposit         TransactionType = "DEPOSIT"
	TransactionTypeOnramp          TransactionType = "ONRAMP"
)

// TransactionStatus defines the status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// Transaction represents one money movement against a wallet. Rows start in
// PENDING and are mutated only through the ledger package; COMPLETED and
// FAILED are terminal.
type Transaction struct {
	gorm.Model
	UserID   uint              `gorm:"not null;index" json:"userId"`
	WalletID uint              `gorm:"not null;index" json:"walletId"`
	Type     TransactionType   `gorm:"type:varchar(30);not null" json:"type"`
	Status   TransactionStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`

	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Currency     string          `gorm:"type:varchar(10);not null" json:"currency"`
	Fee          decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"fee"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(20,8);not null;default:1" json:"exchangeRate"`

	Recipient         string `gorm:"type:varchar(255)" json:"recipient"` // email of an internal user or an external address
	RecipientCurrency string `gorm:"type:varchar(10)" json:"recipientCurrency"`
	PaymentMethod     string `gorm:"type:varchar(50)" json:"paymentMethod"`

	ExternalTransferID string `gorm:"type:varchar(100);index" json:"externalTransferId"`
	Reference          string `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	FailureReason      string `gorm:"type:text" json:"failureReason,omitempty"`

	CompletedAt *time.Time `json:"completedAt"`

	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Wallet Wallet `gorm:"foreignKey:WalletID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// TotalDebit is the full amount charged to the sender: amount plus fee.
func (t *Transaction) TotalDebit() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}

// ReservedTotal is how much of the wallet is held against this transaction.
// Credit-type rows (deposits, onramps, received transfers) reserve nothing:
// the funds are inbound.
func (t *Transaction) ReservedTotal() decimal.Decimal {
	if t.Type == TransactionTypeTransferSend {
		return t.TotalDebit()
	}
	return decimal.Zero
}

// IsTerminal reports whether no further status transition is allowed.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}
