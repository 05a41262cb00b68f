package notify

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTenderCreated   EventType = "tender.created"
	EventBidPlaced       EventType = "tender.bid_placed"
	EventBidUpdated      EventType = "tender.bid_updated"
	EventBidWithdrawn    EventType = "tender.bid_withdrawn"
	EventWinnerSelected  EventType = "tender.winner_selected"
	EventWorkSubmitted   EventType = "tender.work_submitted"
	EventTenderPaid      EventType = "tender.paid"
	EventInvoiceCreated  EventType = "invoice.created"
	EventInvoicePaid     EventType = "invoice.paid"
	EventInvoiceCanceled EventType = "invoice.cancelled"
	EventPartyRegistered EventType = "party.registered"
	EventPayrollFinished EventType = "payroll.finished"
)

// Workflow state change published to subscribers
type Event struct {
	Type      EventType `json:"type"`
	EntityId  string    `json:"entity_id"`
	Actor     string    `json:"actor,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reference string    `json:"reference,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func NewEvent(typ EventType, entityId string) *Event {
	return &Event{
		Type:      typ,
		EntityId:  entityId,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (self *Event) WithActor(v string) *Event {
	self.Actor = v
	return self
}

func (self *Event) WithStatus(v string) *Event {
	self.Status = v
	return self
}

func (self *Event) WithReference(v string) *Event {
	self.Reference = v
	return self
}

func (self *Event) MarshalBinary() (data []byte, err error) {
	return json.Marshal(self)
}
