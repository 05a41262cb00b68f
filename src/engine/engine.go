package engine

import (
	"github.com/warp-contracts/shadowlink/src/eligibility"
	"github.com/warp-contracts/shadowlink/src/invoice"
	"github.com/warp-contracts/shadowlink/src/party"
	"github.com/warp-contracts/shadowlink/src/payroll"
	"github.com/warp-contracts/shadowlink/src/tender"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/history"
	monitor_engine "github.com/warp-contracts/shadowlink/src/utils/monitoring/engine"
	"github.com/warp-contracts/shadowlink/src/utils/notify"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/task"
)

// Wires workflows with their store, settlement gateway, audit log and notifier
type Engine struct {
	*task.Task

	Monitor     *monitor_engine.Monitor
	Gateway     *settlement.Gateway
	History     *history.Recorder
	Notifier    notify.Notifier
	Parties     *party.Directory
	Eligibility *eligibility.Tracker
	Tenders     *tender.Workflow
	Invoices    *invoice.Workflow
	Employees   *payroll.Employees
	Payroll     *payroll.Runner

	operations map[string]handler
}

func New(config *config.Config) (self *Engine, err error) {
	self = new(Engine)
	self.Task = task.NewTask(config, "engine")

	self.Monitor = monitor_engine.NewMonitor()

	stores, err := newStores(self.Ctx, config)
	if err != nil {
		self.Monitor.GetReport().Run.Errors.NumStartupErrors.Inc()
		return
	}

	self.Gateway = settlement.NewGateway(config).
		WithMonitor(self.Monitor)

	self.History = history.NewRecorder(config).
		WithStore(stores.records).
		WithMonitor(self.Monitor)

	publisher := notify.NewRedisPublisher(config).
		WithMonitor(self.Monitor)
	if config.Notifier.Enabled {
		self.Notifier = publisher
	} else {
		self.Notifier = notify.Noop{}
	}

	self.Parties = party.NewDirectory(stores.parties)

	self.Eligibility = eligibility.NewTracker(config).
		WithDirectory(self.Parties).
		WithPool(self.Gateway).
		WithHistory(self.History).
		WithNotifier(self.Notifier).
		WithMonitor(self.Monitor)

	self.Tenders = tender.NewWorkflow(config).
		WithStore(stores.tenders, stores.bids).
		WithDirectory(self.Parties).
		WithRegistry(self.Eligibility).
		WithSettler(self.Gateway).
		WithHistory(self.History).
		WithNotifier(self.Notifier).
		WithMonitor(self.Monitor)

	self.Invoices = invoice.NewWorkflow(config).
		WithStore(stores.invoices).
		WithRegistry(self.Eligibility).
		WithSettler(self.Gateway).
		WithHistory(self.History).
		WithNotifier(self.Notifier).
		WithMonitor(self.Monitor)

	self.Employees = payroll.NewEmployees(config).
		WithStore(stores.employees)

	self.Payroll = payroll.NewRunner(config).
		WithEmployees(self.Employees).
		WithRegistry(self.Eligibility).
		WithGateway(self.Gateway).
		WithHistory(self.History).
		WithNotifier(self.Notifier).
		WithMonitor(self.Monitor)

	self.operations = self.handlers()

	self.Task = self.Task.
		WithSubtask(self.Monitor.Task).
		WithSubtask(self.History.Task).
		WithConditionalSubtask(config.Notifier.Enabled, publisher.Task)

	return
}
