package tender

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/party"
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

// Drives tenders through open -> in_progress -> paid.
// Every transition is a guarded write on the current status.
type Workflow struct {
	config   *config.Config
	log      *logrus.Entry
	counters *report.WorkflowReport
	now      func() time.Time

	tenders  store.Collection[model.Tender]
	bids     store.Collection[model.Bid]
	parties  *party.Directory
	registry workflow.Registry
	settler  settlement.Settler
	amounts  *workflow.Amounts
	history  workflow.History
	notifier notify.Notifier
}

func NewWorkflow(config *config.Config) (self *Workflow) {
	self = new(Workflow)
	self.config = config
	self.log = logger.NewSublogger("tender")
	self.counters = &report.WorkflowReport{}
	self.now = time.Now
	self.amounts = workflow.NewAmounts(&config.Asset)
	self.history = workflow.NoHistory{}
	self.notifier = notify.Noop{}
	return
}

func (self *Workflow) WithStore(tenders store.Collection[model.Tender], bids store.Collection[model.Bid]) *Workflow {
	self.tenders = tenders
	self.bids = bids
	return self
}

func (self *Workflow) WithDirectory(parties *party.Directory) *Workflow {
	self.parties = parties
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

type ListTendersRequest struct {
	Status  string `json:"status" validate:"omitempty,oneof=open in_progress paid"`
	Creator string `json:"creator"`
	Limit   int    `json:"limit" validate:"min=0"`
}

func (self *Workflow) GetTender(ctx context.Context, id string) (*model.Tender, error) {
	tender, err := self.tenders.FindOne(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, workflow.Wrap(workflow.ErrNotFound, "tender %s", id)
	}
	return tender, err
}

// Newest first
func (self *Workflow) ListTenders(ctx context.Context, req *ListTendersRequest) ([]*model.Tender, error) {
	err := workflow.Validate(req)
	if err != nil {
		return nil, err
	}

	filter := store.Filter{}
	if req.Status != "" {
		filter["status"] = model.TenderStatus(req.Status)
	}
	if req.Creator != "" {
		filter["creator"] = req.Creator
	}
	return self.tenders.FindMany(ctx, filter, store.Descending(), store.Limit(req.Limit))
}

// Live bids, oldest first
func (self *Workflow) ListBids(ctx context.Context, tenderId string) ([]*model.Bid, error) {
	_, err := self.GetTender(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	return self.bids.FindMany(ctx, store.Filter{"tender_id": tenderId})
}

func (self *Workflow) getBid(ctx context.Context, id string) (*model.Bid, error) {
	bid, err := self.bids.FindOne(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, workflow.Wrap(workflow.ErrNotFound, "bid %s", id)
	}
	return bid, err
}

// Writes that follow a confirmed settlement must not be abandoned with the caller's context
func (self *Workflow) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), self.config.StopTimeout)
}

func (self *Workflow) requireRegistered(ctx context.Context, address string, reason error) error {
	registered, err := self.registry.IsRegistered(ctx, address)
	if err != nil {
		return err
	}
	if !registered {
		return workflow.Wrap(reason, "%s", address)
	}
	return nil
}
