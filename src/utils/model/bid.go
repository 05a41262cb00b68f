package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableBid = "bids"
)

// Live only while its tender is open. Unique per (tender, bidder).
type Bid struct {
	ID         string          `gorm:"primaryKey" json:"id"`
	TenderId   string          `json:"tenderId"`
	Bidder     string          `json:"bidder"`
	BidderName string          `json:"bidderName"`
	Amount     decimal.Decimal `gorm:"type:numeric" json:"amount"`

	DepositPaid bool `json:"depositPaid"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Bid) TableName() string {
	return TableBid
}
