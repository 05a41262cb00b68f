package model

import (
	"time"

	"github.com/jackc/pgtype"
)

const (
	TableSettlementRecord = "settlement_records"
)

// Append-only audit log of settlement references
type SettlementRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	Reference string    `json:"reference"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Optional details of the operation, e.g. the parsed legs of an internal transfer
	Details pgtype.JSONB `gorm:"type:jsonb" json:"details"`
}

func (SettlementRecord) TableName() string {
	return TableSettlementRecord
}
