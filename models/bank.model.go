package models

import (
	"time"

	"gorm.io/gorm"
)

// BankAccount model
type BankAccount struct {
	gorm.Model             // Auto includes ID, CreatedAt, UpdatedAt, DeletedAt
	UserID      uint       `gorm:"not null;index" json:"userId"`
	BankName    string     `gorm:"default:''" json:"bankName"`
	AccountNo   string     `gorm:"default:''" json:"accountNo"`
	HolderName  string     `gorm:"default:''" json:"holderName"`
	RoutingCode string     `gorm:"default:''" json:"routingCode"`
	Currency    string     `gorm:"type:varchar(10);default:'USD'" json:"currency"`
	AccountType string     `gorm:"type:text;default:'savings'" json:"accountType"`
	IsVerified  bool       `gorm:"default:false" json:"isVerified"`
	VerifiedAt  *time.Time `json:"verifiedAt"`
	IsPrimary   bool       `gorm:"default:false" json:"isPrimary"`
	IsDeleted   bool       `gorm:"default:false" json:"isDeleted"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (BankAccount) TableName() string {
	return "bank_accounts"
}
