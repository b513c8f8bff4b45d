package models

import (
	"time"
)

// TransactionStatusHistory is the append-only audit log of status
// transitions. Rows are never updated or deleted; they are the authoritative
// timeline for reconciliation and dispute resolution.
type TransactionStatusHistory struct {
	ID            uint              `gorm:"primarykey" json:"id"`
	TransactionID uint              `gorm:"not null;index" json:"transactionId"`
	Status        TransactionStatus `gorm:"type:varchar(20);not null" json:"status"`
	Message       string            `gorm:"type:text" json:"message"`
	CreatedAt     time.Time         `json:"createdAt"`

	Transaction Transaction `gorm:"foreignKey:TransactionID" json:"-"`
}

func (TransactionStatusHistory) TableName() string {
	return "transaction_status_histories"
}
