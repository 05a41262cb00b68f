package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableInvoice = "invoices"
)

type Invoice struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	Number         string          `json:"number"`
	Supplier       string          `json:"supplier"`
	Buyer          string          `json:"buyer"`
	Amount         decimal.Decimal `gorm:"type:numeric" json:"amount"`
	Description    string          `json:"description"`
	SettlementType SettlementType  `json:"settlementType"`
	Status         InvoiceStatus   `json:"status"`

	SettlementReference *string    `json:"settlementReference,omitempty"`
	PaidAt              *time.Time `json:"paidAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Invoice) TableName() string {
	return TableInvoice
}
