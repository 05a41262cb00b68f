package model

import "database/sql/driver"

// CREATE TYPE tender_status AS ENUM ('open', 'in_progress', 'paid');
type TenderStatus string

const (
	TenderStatusOpen       TenderStatus = "open"
	TenderStatusInProgress TenderStatus = "in_progress"
	TenderStatusPaid       TenderStatus = "paid"
)

func (self *TenderStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*self = TenderStatus(v)
	default:
		*self = TenderStatus(value.(string))
	}
	return nil
}

func (self TenderStatus) Value() (driver.Value, error) {
	return string(self), nil
}
