package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/party"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring/report"
	"github.com/warp-contracts/shadowlink/src/utils/notify"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

// Pool operations the tracker needs
type Pool interface {
	Deposit(ctx context.Context, req settlement.DepositRequest, signer settlement.Signer) *settlement.Result
	Withdraw(ctx context.Context, req settlement.WithdrawRequest, signer settlement.Signer) *settlement.Result
	Balance(ctx context.Context, address string) (*settlement.Balance, error)
}

type Status struct {
	// Party record exists
	Exists bool `json:"exists"`

	// Party completed a deposit
	Registered bool `json:"registered"`
}

// Whole units
type Balance struct {
	Address   string          `json:"address"`
	Available decimal.Decimal `json:"available"`
	Shielded  decimal.Decimal `json:"shielded"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Knows which parties joined the shielded pool
type Tracker struct {
	log      *logrus.Entry
	counters *report.WorkflowReport

	parties  *party.Directory
	pool     Pool
	amounts  *workflow.Amounts
	history  workflow.History
	notifier notify.Notifier
	balances *cache.Cache
}

func NewTracker(config *config.Config) (self *Tracker) {
	self = new(Tracker)
	self.log = logger.NewSublogger("eligibility")
	self.counters = &report.WorkflowReport{}
	self.amounts = workflow.NewAmounts(&config.Asset)
	self.history = workflow.NoHistory{}
	self.notifier = notify.Noop{}
	self.balances = cache.New(config.Eligibility.BalanceCacheTTL, config.Eligibility.BalanceCacheCleanupInterval)
	return
}

func (self *Tracker) WithDirectory(parties *party.Directory) *Tracker {
	self.parties = parties
	return self
}

func (self *Tracker) WithPool(pool Pool) *Tracker {
	self.pool = pool
	return self
}

func (self *Tracker) WithHistory(history workflow.History) *Tracker {
	self.history = history
	return self
}

func (self *Tracker) WithNotifier(notifier notify.Notifier) *Tracker {
	self.notifier = notifier
	return self
}

func (self *Tracker) WithMonitor(monitor monitoring.Monitor) *Tracker {
	self.counters = monitor.GetReport().Workflow
	return self
}

// Pure read, never creates the party
func (self *Tracker) CheckStatus(ctx context.Context, address string) (*Status, error) {
	registered, exists, err := self.lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	return &Status{Exists: exists, Registered: registered}, nil
}

func (self *Tracker) lookup(ctx context.Context, address string) (registered, exists bool, err error) {
	p, err := self.parties.Find(ctx, address)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return false, false, nil
		}
		return
	}
	return p.Registered, true, nil
}

func (self *Tracker) IsRegistered(ctx context.Context, address string) (bool, error) {
	return self.parties.IsRegistered(ctx, address)
}

// Idempotent. Creates the party if needed.
func (self *Tracker) Register(ctx context.Context, address string) (*Status, error) {
	changed, err := self.parties.MarkRegistered(ctx, address)
	if err != nil {
		self.counters.Errors.StoreErrors.Inc()
		return nil, err
	}

	if changed {
		self.counters.State.Registrations.Inc()
		self.notifier.Notify(notify.NewEvent(notify.EventPartyRegistered, address).WithActor(address))
		self.log.WithField("address", address).Info("Party registered")
	}

	return &Status{Exists: true, Registered: true}, nil
}

// Moves funds into the pool. First successful deposit registers the party.
func (self *Tracker) Deposit(ctx context.Context, address string, req *AmountRequest, signer settlement.Signer) (result *settlement.Result, err error) {
	amount, err := self.amounts.ToMinorUnits(req.Amount)
	if err != nil {
		return
	}

	result = self.pool.Deposit(ctx, settlement.DepositRequest{Party: address, Amount: amount}, signer)
	if !result.Success {
		return result, fmt.Errorf("deposit failed: %w", result.Err())
	}
	self.balances.Delete(address)

	err = self.history.Record(ctx, result.Reference, result.HistoryKind())
	if err != nil {
		self.log.WithError(err).WithField("reference", result.Reference).Error("Failed to record deposit")
	}

	// Funds are in the pool, registration must not be lost because the caller went away
	_, err = self.Register(context.WithoutCancel(ctx), address)
	return
}

func (self *Tracker) Withdraw(ctx context.Context, address string, req *AmountRequest, signer settlement.Signer) (result *settlement.Result, err error) {
	amount, err := self.amounts.ToMinorUnits(req.Amount)
	if err != nil {
		return
	}

	registered, err := self.IsRegistered(ctx, address)
	if err != nil {
		return
	}
	if !registered {
		return nil, workflow.Wrap(workflow.ErrNotEligible, "%s never deposited", address)
	}

	result = self.pool.Withdraw(ctx, settlement.WithdrawRequest{Party: address, Amount: amount}, signer)
	if !result.Success {
		return result, fmt.Errorf("withdraw failed: %w", result.Err())
	}
	self.balances.Delete(address)

	err = self.history.Record(ctx, result.Reference, result.HistoryKind())
	if err != nil {
		self.log.WithError(err).WithField("reference", result.Reference).Error("Failed to record withdrawal")
		err = nil
	}
	return
}

// Pool balance, served from a short lived cache
func (self *Tracker) Balance(ctx context.Context, address string) (*Balance, error) {
	cached, ok := self.balances.Get(address)
	if ok {
		return cached.(*Balance), nil
	}

	raw, err := self.pool.Balance(ctx, address)
	if err != nil {
		return nil, err
	}

	balance := &Balance{
		Address:   address,
		Available: self.amounts.FromMinorUnits(raw.Available),
		Shielded:  self.amounts.FromMinorUnits(raw.Shielded),
	}
	self.balances.SetDefault(address, balance)
	return balance, nil
}
