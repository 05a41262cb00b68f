package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

const (
	TableParty = "parties"
)

// Entry of a party's address book
type Contact struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Ordered list of contacts, kept as a jsonb column
type Contacts []Contact

func (self *Contacts) Scan(value interface{}) error {
	var buf []byte
	switch v := value.(type) {
	case nil:
		*self = nil
		return nil
	case []byte:
		buf = v
	case string:
		buf = []byte(v)
	default:
		return errors.New("contacts: unsupported column type")
	}
	return json.Unmarshal(buf, self)
}

func (self Contacts) Value() (driver.Value, error) {
	if self == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(self)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Any address participating in workflows. Created lazily, never deleted.
type Party struct {
	Address string `gorm:"primaryKey" json:"address"`

	// Completed at least one deposit into the pool
	Registered bool `json:"registered"`

	Contacts Contacts `gorm:"type:jsonb" json:"contacts"`

	// Company profile
	Name           string `json:"name"`
	Description    string `json:"description"`
	Industry       string `json:"industry"`
	EmployeesCount int    `json:"employeesCount"`
	TendersCreated int    `json:"tendersCreated"`
	TendersWon     int    `json:"tendersWon"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Party) TableName() string {
	return TableParty
}

// Name from the profile, falls back to the address
func (self *Party) DisplayName() string {
	if self.Name != "" {
		return self.Name
	}
	return self.Address
}
