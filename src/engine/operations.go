package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/teivah/onecontext"
	"github.com/warp-contracts/shadowlink/src/eligibility"
	"github.com/warp-contracts/shadowlink/src/invoice"
	"github.com/warp-contracts/shadowlink/src/party"
	"github.com/warp-contracts/shadowlink/src/payroll"
	"github.com/warp-contracts/shadowlink/src/tender"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

// One workflow operation invoked on behalf of an actor
type Call struct {
	Operation string

	// Address of the acting party
	Actor string

	// JSON request, its type depends on the operation. Unknown fields are rejected.
	Payload []byte

	// Needed only by operations that settle
	Signer settlement.Signer

	// Payroll progress, optional
	OnProgress payroll.ProgressFunc
}

type handler func(ctx context.Context, call *Call) (interface{}, error)

// Entity together with the settlement that changed it
type Settled[T any] struct {
	Entity     *T                 `json:"entity"`
	Settlement *settlement.Result `json:"settlement"`
}

type tenderRequest struct {
	TenderId string `json:"tenderId" validate:"required"`
}

type addressRequest struct {
	// Defaults to the actor
	Address string `json:"address"`
}

type historyRequest struct {
	Limit int `json:"limit" validate:"min=0,max=1000"`
}

type emptyRequest struct{}

// Decodes the payload into a closed request type
func decode[T any](payload []byte) (*T, error) {
	req := new(T)
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(req)
	if err != nil {
		return nil, workflow.Wrap(workflow.ErrValidation, "invalid request: %v", err)
	}
	if decoder.More() {
		return nil, workflow.Wrap(workflow.ErrValidation, "invalid request: trailing data")
	}

	err = workflow.Validate(req)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func handle[T any](f func(ctx context.Context, call *Call, req *T) (interface{}, error)) handler {
	return func(ctx context.Context, call *Call) (interface{}, error) {
		req, err := decode[T](call.Payload)
		if err != nil {
			return nil, err
		}
		return f(ctx, call, req)
	}
}

func (self *addressRequest) or(actor string) string {
	if self.Address == "" {
		return actor
	}
	return self.Address
}

func (self *Engine) handlers() map[string]handler {
	return map[string]handler{
		// Tenders
		"createTender": handle(func(ctx context.Context, call *Call, req *tender.CreateTenderRequest) (interface{}, error) {
			return self.Tenders.CreateTender(ctx, call.Actor, req)
		}),
		"placeBid": handle(func(ctx context.Context, call *Call, req *tender.PlaceBidRequest) (interface{}, error) {
			return self.Tenders.PlaceBid(ctx, call.Actor, req)
		}),
		"updateBid": handle(func(ctx context.Context, call *Call, req *tender.UpdateBidRequest) (interface{}, error) {
			return self.Tenders.UpdateBid(ctx, call.Actor, req)
		}),
		"withdrawBid": handle(func(ctx context.Context, call *Call, req *tender.WithdrawBidRequest) (interface{}, error) {
			return nil, self.Tenders.WithdrawBid(ctx, call.Actor, req)
		}),
		"selectWinner": handle(func(ctx context.Context, call *Call, req *tender.SelectWinnerRequest) (interface{}, error) {
			return self.Tenders.SelectWinner(ctx, call.Actor, req)
		}),
		"submitWork": handle(func(ctx context.Context, call *Call, req *tender.SubmitWorkRequest) (interface{}, error) {
			return self.Tenders.SubmitWork(ctx, call.Actor, req)
		}),
		"finalizePayment": handle(func(ctx context.Context, call *Call, req *tender.FinalizePaymentRequest) (interface{}, error) {
			t, result, err := self.Tenders.FinalizePayment(ctx, call.Actor, req, call.Signer)
			return &Settled[model.Tender]{Entity: t, Settlement: result}, err
		}),
		"getTender": handle(func(ctx context.Context, call *Call, req *tenderRequest) (interface{}, error) {
			return self.Tenders.GetTender(ctx, req.TenderId)
		}),
		"listTenders": handle(func(ctx context.Context, call *Call, req *tender.ListTendersRequest) (interface{}, error) {
			return self.Tenders.ListTenders(ctx, req)
		}),
		"listBids": handle(func(ctx context.Context, call *Call, req *tenderRequest) (interface{}, error) {
			return self.Tenders.ListBids(ctx, req.TenderId)
		}),

		// Invoices
		"createInvoice": handle(func(ctx context.Context, call *Call, req *invoice.CreateInvoiceRequest) (interface{}, error) {
			return self.Invoices.CreateInvoice(ctx, call.Actor, req)
		}),
		"payInvoice": handle(func(ctx context.Context, call *Call, req *invoice.InvoiceRequest) (interface{}, error) {
			i, result, err := self.Invoices.PayInvoice(ctx, call.Actor, req, call.Signer)
			return &Settled[model.Invoice]{Entity: i, Settlement: result}, err
		}),
		"cancelInvoice": handle(func(ctx context.Context, call *Call, req *invoice.InvoiceRequest) (interface{}, error) {
			return self.Invoices.CancelInvoice(ctx, call.Actor, req)
		}),
		"getInvoice": handle(func(ctx context.Context, call *Call, req *invoice.InvoiceRequest) (interface{}, error) {
			return self.Invoices.GetInvoice(ctx, call.Actor, req)
		}),
		"listInvoices": handle(func(ctx context.Context, call *Call, req *invoice.ListInvoicesRequest) (interface{}, error) {
			return self.Invoices.ListInvoices(ctx, call.Actor, req)
		}),

		// Payroll
		"addEmployee": handle(func(ctx context.Context, call *Call, req *payroll.AddEmployeeRequest) (interface{}, error) {
			return self.Employees.AddEmployee(ctx, call.Actor, req)
		}),
		"updateEmployee": handle(func(ctx context.Context, call *Call, req *payroll.UpdateEmployeeRequest) (interface{}, error) {
			return self.Employees.UpdateEmployee(ctx, call.Actor, req)
		}),
		"removeEmployee": handle(func(ctx context.Context, call *Call, req *payroll.RemoveEmployeeRequest) (interface{}, error) {
			return nil, self.Employees.RemoveEmployee(ctx, call.Actor, req)
		}),
		"listEmployees": handle(func(ctx context.Context, call *Call, req *emptyRequest) (interface{}, error) {
			return self.Employees.ListEmployees(ctx, call.Actor)
		}),
		"runPayroll": handle(func(ctx context.Context, call *Call, req *emptyRequest) (interface{}, error) {
			return self.Payroll.Run(ctx, call.Actor, call.Signer, call.OnProgress)
		}),

		// Eligibility
		"checkStatus": handle(func(ctx context.Context, call *Call, req *addressRequest) (interface{}, error) {
			return self.Eligibility.CheckStatus(ctx, req.or(call.Actor))
		}),
		"register": handle(func(ctx context.Context, call *Call, req *emptyRequest) (interface{}, error) {
			return self.Eligibility.Register(ctx, call.Actor)
		}),
		"deposit": handle(func(ctx context.Context, call *Call, req *eligibility.AmountRequest) (interface{}, error) {
			return self.Eligibility.Deposit(ctx, call.Actor, req, call.Signer)
		}),
		"withdraw": handle(func(ctx context.Context, call *Call, req *eligibility.AmountRequest) (interface{}, error) {
			return self.Eligibility.Withdraw(ctx, call.Actor, req, call.Signer)
		}),
		"balance": handle(func(ctx context.Context, call *Call, req *addressRequest) (interface{}, error) {
			return self.Eligibility.Balance(ctx, req.or(call.Actor))
		}),

		// Profiles
		"getProfile": handle(func(ctx context.Context, call *Call, req *addressRequest) (interface{}, error) {
			return self.Parties.GetProfile(ctx, req.or(call.Actor))
		}),
		"updateProfile": handle(func(ctx context.Context, call *Call, req *party.UpdateProfileRequest) (interface{}, error) {
			return self.Parties.UpdateProfile(ctx, call.Actor, req)
		}),
		"addContact": handle(func(ctx context.Context, call *Call, req *party.AddContactRequest) (interface{}, error) {
			return self.Parties.AddContact(ctx, call.Actor, req)
		}),
		"removeContact": handle(func(ctx context.Context, call *Call, req *party.RemoveContactRequest) (interface{}, error) {
			return self.Parties.RemoveContact(ctx, call.Actor, req)
		}),
		"listContacts": handle(func(ctx context.Context, call *Call, req *emptyRequest) (interface{}, error) {
			return self.Parties.ListContacts(ctx, call.Actor)
		}),

		// Audit log
		"recentHistory": handle(func(ctx context.Context, call *Call, req *historyRequest) (interface{}, error) {
			return self.History.Recent(ctx, req.Limit)
		}),
	}
}

// Names of all operations, sorted
func (self *Engine) Operations() (out []string) {
	out = make([]string, 0, len(self.operations))
	for name := range self.operations {
		out = append(out, name)
	}
	sort.Strings(out)
	return
}

// Runs one operation. Cancelled when either the caller gives up or the engine stops.
func (self *Engine) Call(ctx context.Context, call *Call) (out interface{}, err error) {
	h, ok := self.operations[call.Operation]
	if !ok {
		return nil, workflow.Wrap(workflow.ErrValidation, "unknown operation %q", call.Operation)
	}

	call.Actor = strings.TrimSpace(call.Actor)
	if call.Actor == "" {
		return nil, workflow.Wrap(workflow.ErrValidation, "actor is required")
	}

	ctx, cancel := onecontext.Merge(ctx, self.Ctx)
	defer cancel()

	log := self.Log.WithField("operation", call.Operation).WithField("actor", call.Actor)

	out, err = h(ctx, call)
	switch {
	case err == nil:
		log.Debug("Operation finished")
	case errors.Is(err, workflow.ErrAlreadyFinalized):
		log.WithError(err).Warn("Operation lost a race")
	case isRejection(err):
		self.Monitor.GetReport().Workflow.Errors.Rejected.Inc()
		log.WithError(err).Info("Operation rejected")
	default:
		log.WithError(err).Warn("Operation failed")
	}
	return
}

// Rejected before any state change or settlement
func isRejection(err error) bool {
	return errors.Is(err, workflow.ErrValidation) ||
		errors.Is(err, workflow.ErrNotEligible) ||
		errors.Is(err, workflow.ErrInvalidState) ||
		errors.Is(err, workflow.ErrNotFound) ||
		errors.Is(err, workflow.ErrForbidden)
}
