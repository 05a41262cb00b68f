package report

import "go.uber.org/atomic"

type WorkflowErrors struct {
	Rejected         atomic.Uint64 `json:"rejected"`
	AlreadyFinalized atomic.Uint64 `json:"already_finalized"`
	StoreErrors      atomic.Uint64 `json:"store"`
}

type WorkflowState struct {
	TendersCreated   atomic.Uint64 `json:"tenders_created"`
	BidsPlaced       atomic.Uint64 `json:"bids_placed"`
	WinnersSelected  atomic.Uint64 `json:"winners_selected"`
	WorkSubmitted    atomic.Uint64 `json:"work_submitted"`
	TendersPaid      atomic.Uint64 `json:"tenders_paid"`
	InvoicesCreated  atomic.Uint64 `json:"invoices_created"`
	InvoicesPaid     atomic.Uint64 `json:"invoices_paid"`
	InvoicesCanceled atomic.Uint64 `json:"invoices_canceled"`
	Registrations    atomic.Uint64 `json:"registrations"`
}

type WorkflowReport struct {
	State  WorkflowState  `json:"state"`
	Errors WorkflowErrors `json:"errors"`
}
