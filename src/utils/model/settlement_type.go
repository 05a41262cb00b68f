package model

import (
	"database/sql/driver"
	"errors"
)

// CREATE TYPE settlement_type AS ENUM ('internal', 'external');
type SettlementType string

const (
	// Shielded transfer inside the pool, both parties need to be registered
	SettlementTypeInternal SettlementType = "internal"

	// Signed, broadcast transaction
	SettlementTypeExternal SettlementType = "external"
)

var ErrUnknownSettlementType = errors.New("unknown settlement type")

func ParseSettlementType(v string) (SettlementType, error) {
	switch SettlementType(v) {
	case SettlementTypeInternal, SettlementTypeExternal:
		return SettlementType(v), nil
	}
	return "", ErrUnknownSettlementType
}

func (self SettlementType) IsInternal() bool {
	return self == SettlementTypeInternal
}

func (self *SettlementType) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*self = SettlementType(v)
	case []byte:
		*self = SettlementType(v)
	default:
		return ErrUnknownSettlementType
	}
	return nil
}

func (self SettlementType) Value() (driver.Value, error) {
	return string(self), nil
}
