package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableTender = "tenders"
)

type Tender struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	MaxBudget   decimal.Decimal `gorm:"type:numeric" json:"maxBudget"`
	Status      TenderStatus    `json:"status"`
	Creator     string          `json:"creator"`

	// Zero time means bidding has no deadline
	Deadline time.Time `json:"deadline"`

	// Set together with FinalAmount when a winner is selected
	Winner      *string          `json:"winner,omitempty"`
	FinalAmount *decimal.Decimal `gorm:"type:numeric" json:"finalAmount,omitempty"`

	// Work submitted by the winner
	WorkSubmission          *string         `json:"workSubmission,omitempty"`
	SubmittedAt             *time.Time      `json:"submittedAt,omitempty"`
	PreferredSettlementType *SettlementType `json:"preferredSettlementType,omitempty"`
	PreferredPayoutAddress  *string         `json:"preferredPayoutAddress,omitempty"`

	// Set when paid
	SettlementReference *string    `json:"settlementReference,omitempty"`
	PaidAt              *time.Time `json:"paidAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Tender) TableName() string {
	return TableTender
}

// Address the payment goes to
func (self *Tender) PayoutAddress() string {
	if self.PreferredPayoutAddress != nil && *self.PreferredPayoutAddress != "" {
		return *self.PreferredPayoutAddress
	}
	if self.Winner == nil {
		return ""
	}
	return *self.Winner
}

func (self *Tender) SettlementType() SettlementType {
	if self.PreferredSettlementType == nil {
		return SettlementTypeExternal
	}
	return *self.PreferredSettlementType
}
