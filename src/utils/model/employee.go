package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableEmployee = "employees"
)

type Employee struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	EmployerWallet string          `json:"employerWallet"`
	Name           string          `json:"name"`
	WalletAddress  string          `json:"walletAddress"`
	Salary         decimal.Decimal `gorm:"type:numeric" json:"salary"`
	PaymentType    SettlementType  `json:"paymentType"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Employee) TableName() string {
	return TableEmployee
}
