package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring/report"
	"github.com/warp-contracts/shadowlink/src/utils/notify"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

// Attempts to find a free invoice number
const maxNumberAttempts = 5

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Bilateral payment obligation: pending -> paid | cancelled
type Workflow struct {
	config   *config.Config
	log      *logrus.Entry
	counters *report.WorkflowReport
	now      func() time.Time

	invoices store.Collection[model.Invoice]
	registry workflow.Registry
	settler  settlement.Settler
	amounts  *workflow.Amounts
	history  workflow.History
	notifier notify.Notifier
}

type CreateInvoiceRequest struct {
	Buyer       string          `json:"buyer" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=4096"`

	// internal or external, defaults to external
	SettlementType string `json:"settlementType" validate:"omitempty,oneof=internal external"`
}

type InvoiceRequest struct {
	InvoiceId string `json:"invoiceId" validate:"required"`
}

type ListInvoicesRequest struct {
	Direction string `json:"direction" validate:"required,oneof=incoming outgoing"`
	Status    string `json:"status" validate:"omitempty,oneof=pending paid cancelled"`
}

func NewWorkflow(config *config.Config) (self *Workflow) {
	self = new(Workflow)
	self.config = config
	self.log = logger.NewSublogger("invoice")
	self.counters = &report.WorkflowReport{}
	self.now = time.Now
	self.amounts = workflow.NewAmounts(&config.Asset)
	self.history = workflow.NoHistory{}
	self.notifier = notify.Noop{}
	return
}

func (self *Workflow) WithStore(invoices store.Collection[model.Invoice]) *Workflow {
	self.invoices = invoices
	return self
}

func (self *Workflow) WithRegistry(registry workflow.Registry) *Workflow {
	self.registry = registry
	return self
}

func (self *Workflow) WithSettler(settler settlement.Settler) *Workflow {
	self.settler = settler
	return self
}

func (self *Workflow) WithHistory(history workflow.History) *Workflow {
	self.history = history
	return self
}

func (self *Workflow) WithNotifier(notifier notify.Notifier) *Workflow {
	self.notifier = notifier
	return self
}

func (self *Workflow) WithMonitor(monitor monitoring.Monitor) *Workflow {
	self.counters = monitor.GetReport().Workflow
	return self
}

func (self *Workflow) WithClock(now func() time.Time) *Workflow {
	self.now = now
	return self
}

// Human readable number, e.g. INV-20260301-0A1B2C
func (self *Workflow) newNumber() string {
	id := xid.New().String()
	return fmt.Sprintf("%s-%s-%s",
		self.config.Invoice.NumberPrefix,
		self.now().UTC().Format("20060102"),
		strings.ToUpper(id[len(id)-6:]))
}

// Both parties of an internal settlement need to be in the pool
func (self *Workflow) checkEligible(ctx context.Context, supplier, buyer string) error {
	registered, err := self.registry.IsRegistered(ctx, supplier)
	if err != nil {
		return err
	}
	if !registered {
		return workflow.Wrap(workflow.ErrNotEligible, "supplier %s is not registered", supplier)
	}

	registered, err = self.registry.IsRegistered(ctx, buyer)
	if err != nil {
		return err
	}
	if !registered {
		return workflow.Wrap(workflow.ErrRecipientNotEligible, "buyer %s", buyer)
	}
	return nil
}

// Issued by the actor, who becomes the supplier
func (self *Workflow) CreateInvoice(ctx context.Context, actor string, req *CreateInvoiceRequest) (invoice *model.Invoice, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}
	buyer := strings.TrimSpace(req.Buyer)
	if buyer == "" {
		return nil, workflow.Wrap(workflow.ErrValidation, "buyer is required")
	}
	if buyer == actor {
		return nil, workflow.Wrap(workflow.ErrValidation, "can't invoice yourself")
	}
	err = self.amounts.Validate(req.Amount)
	if err != nil {
		return
	}
	settlementType, err := workflow.SettlementType(req.SettlementType)
	if err != nil {
		return
	}
	if settlementType.IsInternal() {
		err = self.checkEligible(ctx, actor, buyer)
		if err != nil {
			return
		}
	}

	invoice = &model.Invoice{
		ID:             xid.New().String(),
		Supplier:       actor,
		Buyer:          buyer,
		Amount:         req.Amount,
		Description:    req.Description,
		SettlementType: settlementType,
		Status:         model.InvoiceStatusPending,
	}

	for i := 0; i < maxNumberAttempts; i++ {
		invoice.Number = self.newNumber()

		var taken []*model.Invoice
		taken, err = self.invoices.FindMany(ctx, store.Filter{"number": invoice.Number}, store.Limit(1))
		if err != nil {
			return nil, err
		}
		if len(taken) > 0 {
			continue
		}

		// Unique index catches numbers taken in the meantime
		err = self.invoices.Create(ctx, invoice)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		break
	}
	if err != nil {
		self.counters.Errors.StoreErrors.Inc()
		return nil, err
	}
	if invoice.CreatedAt.IsZero() {
		return nil, fmt.Errorf("no free invoice number after %d attempts", maxNumberAttempts)
	}

	self.counters.State.InvoicesCreated.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventInvoiceCreated, invoice.ID).
		WithActor(actor).
		WithStatus(string(invoice.Status)))
	return
}

func (self *Workflow) GetInvoice(ctx context.Context, actor string, req *InvoiceRequest) (*model.Invoice, error) {
	err := workflow.Validate(req)
	if err != nil {
		return nil, err
	}

	invoice, err := self.invoices.FindOne(ctx, req.InvoiceId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, workflow.Wrap(workflow.ErrNotFound, "invoice %s", req.InvoiceId)
	}
	if err != nil {
		return nil, err
	}
	if actor != invoice.Supplier && actor != invoice.Buyer {
		return nil, workflow.Wrap(workflow.ErrForbidden, "invoice of other parties")
	}
	return invoice, nil
}

// Incoming are invoices to pay, outgoing are issued invoices. Newest first.
func (self *Workflow) ListInvoices(ctx context.Context, actor string, req *ListInvoicesRequest) ([]*model.Invoice, error) {
	err := workflow.Validate(req)
	if err != nil {
		return nil, err
	}

	filter := store.Filter{}
	if req.Direction == DirectionIncoming {
		filter["buyer"] = actor
	} else {
		filter["supplier"] = actor
	}
	if req.Status != "" {
		filter["status"] = model.InvoiceStatus(req.Status)
	}
	return self.invoices.FindMany(ctx, filter, store.Descending())
}

// Pays the supplier. The invoice stays pending unless the settlement succeeded.
func (self *Workflow) PayInvoice(ctx context.Context, actor string, req *InvoiceRequest, signer settlement.Signer) (invoice *model.Invoice, result *settlement.Result, err error) {
	invoice, err = self.GetInvoice(ctx, actor, req)
	if err != nil {
		return
	}
	if invoice.Buyer != actor {
		return nil, nil, workflow.Wrap(workflow.ErrForbidden, "only the buyer pays")
	}
	if invoice.Status != model.InvoiceStatusPending {
		return nil, nil, workflow.ErrNotPending
	}

	// Registration is monotonic, checked again anyway
	if invoice.SettlementType.IsInternal() {
		err = self.checkEligible(ctx, invoice.Supplier, invoice.Buyer)
		if err != nil {
			return nil, nil, err
		}
	}

	amount, err := self.amounts.ToMinorUnits(invoice.Amount)
	if err != nil {
		return nil, nil, err
	}

	result = self.settler.Transfer(ctx, settlement.TransferRequest{
		Sender:    invoice.Buyer,
		Recipient: invoice.Supplier,
		Amount:    amount,
		Kind:      invoice.SettlementType,
	}, signer)
	if !result.Success {
		return invoice, result, fmt.Errorf("invoice payment failed: %w", result.Err())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), self.config.StopTimeout)
	defer cancel()

	err = self.history.Record(ctx, result.Reference, "invoice:"+result.HistoryKind())
	if err != nil {
		self.log.WithError(err).WithField("reference", result.Reference).Error("Failed to record invoice payment")
	}

	err = self.invoices.UpdateOne(ctx, invoice.ID,
		store.Filter{"status": model.InvoiceStatusPending},
		store.Changes{
			"status":               model.InvoiceStatusPaid,
			"settlement_reference": result.Reference,
			"paid_at":              self.now().UTC(),
		})
	switch {
	case errors.Is(err, store.ErrConflict):
		self.counters.Errors.AlreadyFinalized.Inc()
		self.log.WithField("invoice_id", invoice.ID).
			WithField("reference", result.Reference).
			Error("Invoice changed during payment, settlement recorded")
		return nil, result, workflow.Wrap(workflow.ErrAlreadyFinalized, "invoice %s", invoice.ID)
	case err != nil:
		invoice, err = self.reconcilePaid(ctx, invoice.ID, result.Reference, err)
		if err != nil {
			return nil, result, err
		}
	}

	self.counters.State.InvoicesPaid.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventInvoicePaid, invoice.ID).
		WithActor(actor).
		WithStatus(string(model.InvoiceStatusPaid)).
		WithReference(result.Reference))

	invoice, err = self.invoices.FindOne(ctx, invoice.ID)
	return invoice, result, err
}

func (self *Workflow) reconcilePaid(ctx context.Context, id, reference string, cause error) (*model.Invoice, error) {
	self.counters.Errors.StoreErrors.Inc()

	invoice, err := self.invoices.FindOne(ctx, id)
	if err != nil {
		self.log.WithError(cause).WithField("reference", reference).Error("Invoice settled but its state is unknown")
		return nil, fmt.Errorf("settled as %s, state unknown: %w", reference, cause)
	}
	if invoice.Status == model.InvoiceStatusPaid && invoice.SettlementReference != nil && *invoice.SettlementReference == reference {
		return invoice, nil
	}
	if invoice.Status.IsTerminal() {
		self.counters.Errors.AlreadyFinalized.Inc()
		return nil, workflow.Wrap(workflow.ErrAlreadyFinalized, "invoice %s", id)
	}

	self.log.WithError(cause).WithField("reference", reference).Error("Invoice settled but not marked as paid")
	return nil, fmt.Errorf("settled as %s, failed to mark as paid: %w", reference, cause)
}

// Either party may cancel a pending invoice
func (self *Workflow) CancelInvoice(ctx context.Context, actor string, req *InvoiceRequest) (invoice *model.Invoice, err error) {
	invoice, err = self.GetInvoice(ctx, actor, req)
	if err != nil {
		return
	}
	if invoice.Status != model.InvoiceStatusPending {
		return nil, workflow.ErrNotPending
	}

	err = self.invoices.UpdateOne(ctx, invoice.ID,
		store.Filter{"status": model.InvoiceStatusPending},
		store.Changes{"status": model.InvoiceStatusCancelled})
	if errors.Is(err, store.ErrConflict) {
		return nil, workflow.ErrNotPending
	}
	if err != nil {
		self.counters.Errors.StoreErrors.Inc()
		return nil, err
	}

	self.counters.State.InvoicesCanceled.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventInvoiceCanceled, invoice.ID).
		WithActor(actor).
		WithStatus(string(model.InvoiceStatusCancelled)))

	return self.invoices.FindOne(ctx, invoice.ID)
}
