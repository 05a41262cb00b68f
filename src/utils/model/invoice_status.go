package model

import "database/sql/driver"

// CREATE TYPE invoice_status AS ENUM ('pending', 'paid', 'cancelled');
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (self InvoiceStatus) IsTerminal() bool {
	return self == InvoiceStatusPaid || self == InvoiceStatusCancelled
}

func (self *InvoiceStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*self = InvoiceStatus(v)
	default:
		*self = InvoiceStatus(value.(string))
	}
	return nil
}

func (self InvoiceStatus) Value() (driver.Value, error) {
	return string(self), nil
}
