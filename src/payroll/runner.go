package payroll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring/report"
	"github.com/warp-contracts/shadowlink/src/utils/notify"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

// Settlement operations used by the runner
type Gateway interface {
	settlement.Settler
	Dispatch(ctx context.Context, req settlement.TransferRequest, signer settlement.Signer) (*settlement.Pending, *settlement.Result)
	Await(ctx context.Context, pending *settlement.Pending) *settlement.Result
}

// Called after every status change, in the order of changes
type ProgressFunc func(status RunStatus)

// Pays every employee of an employer, one disbursement after another.
// A failed disbursement never stops the run and nothing is rolled back.
type Runner struct {
	config   *config.Config
	log      *logrus.Entry
	counters *report.PayrollReport

	employees *Employees
	registry  workflow.Registry
	gateway   Gateway
	amounts   *workflow.Amounts
	history   workflow.History
	notifier  notify.Notifier
}

func NewRunner(config *config.Config) (self *Runner) {
	self = new(Runner)
	self.config = config
	self.log = logger.NewSublogger("payroll")
	self.counters = &report.PayrollReport{}
	self.amounts = workflow.NewAmounts(&config.Asset)
	self.history = workflow.NoHistory{}
	self.notifier = notify.Noop{}
	return
}

func (self *Runner) WithEmployees(employees *Employees) *Runner {
	self.employees = employees
	return self
}

func (self *Runner) WithRegistry(registry workflow.Registry) *Runner {
	self.registry = registry
	return self
}

func (self *Runner) WithGateway(gateway Gateway) *Runner {
	self.gateway = gateway
	return self
}

func (self *Runner) WithHistory(history workflow.History) *Runner {
	self.history = history
	return self
}

func (self *Runner) WithNotifier(notifier notify.Notifier) *Runner {
	self.notifier = notifier
	return self
}

func (self *Runner) WithMonitor(monitor monitoring.Monitor) *Runner {
	self.counters = monitor.GetReport().Payroll
	return self
}

// Disburses salaries to all employees of the employer.
// Fails only if the employees can't be listed, otherwise every item ends up completed or failed.
func (self *Runner) Run(ctx context.Context, employer string, signer settlement.Signer, onProgress ProgressFunc) (run *Run, err error) {
	employees, err := self.employees.ListEmployees(ctx, employer)
	if err != nil {
		return
	}

	run = newRun(xid.New().String(), employer, employees, onProgress)
	log := self.log.WithField("run_id", run.ID).WithField("employer", employer)

	self.counters.State.RunsStarted.Inc()
	log.WithField("employees", len(employees)).Info("Payroll run started")

	// Confirmations may overlap, signing stays serial
	var confirmations *workerpool.WorkerPool
	if self.config.Payroll.ConfirmWorkers > 1 {
		confirmations = workerpool.New(self.config.Payroll.ConfirmWorkers)
	}

	for _, employee := range employees {
		self.disburse(ctx, run, employee, signer, confirmations)
	}

	if confirmations != nil {
		confirmations.StopWait()
	}

	run.finish()
	self.counters.State.RunsFinished.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventPayrollFinished, run.ID).
		WithActor(employer).
		WithStatus(fmt.Sprintf("%d/%d", run.Succeeded, len(run.Order))))

	log.WithField("succeeded", run.Succeeded).
		WithField("failed", run.Failed).
		WithField("duration", run.FinishedAt.Sub(run.StartedAt)).
		Info("Payroll run finished")
	return
}

func (self *Runner) disburse(ctx context.Context, run *Run, employee *model.Employee, signer settlement.Signer, confirmations *workerpool.WorkerPool) {
	req, err := self.prepare(ctx, run.Employer, employee)
	if err != nil {
		self.fail(run, employee, err)
		return
	}

	run.update(employee.ID, func(status *RunStatus) {
		status.State = StateProcessing
	})
	self.counters.State.ItemsInProgress.Inc()

	if confirmations == nil {
		self.complete(ctx, run, employee, self.gateway.Transfer(ctx, *req, signer))
		return
	}

	pending, result := self.gateway.Dispatch(ctx, *req, signer)
	if result != nil {
		self.complete(ctx, run, employee, result)
		return
	}

	confirmations.Submit(func() {
		self.complete(ctx, run, employee, self.gateway.Await(ctx, pending))
	})
}

// Checks done before any settlement call
func (self *Runner) prepare(ctx context.Context, employer string, employee *model.Employee) (*settlement.TransferRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	amount, err := self.amounts.ToMinorUnits(employee.Salary)
	if err != nil {
		return nil, err
	}

	if employee.PaymentType.IsInternal() {
		registered, err := self.registry.IsRegistered(ctx, employer)
		if err != nil {
			return nil, err
		}
		if !registered {
			return nil, workflow.Wrap(workflow.ErrNotEligible, "employer %s is not registered", employer)
		}
	}

	return &settlement.TransferRequest{
		Sender:    employer,
		Recipient: employee.WalletAddress,
		Amount:    amount,
		Kind:      employee.PaymentType,
	}, nil
}

func (self *Runner) fail(run *Run, employee *model.Employee, err error) {
	self.counters.State.ItemsFailed.Inc()
	self.log.WithError(err).WithField("employee_id", employee.ID).Warn("Disbursement skipped")
	run.update(employee.ID, func(status *RunStatus) {
		status.State = StateFailed
		status.Reason = err.Error()
		status.err = err
	})
}

func (self *Runner) complete(ctx context.Context, run *Run, employee *model.Employee, result *settlement.Result) {
	self.counters.State.ItemsInProgress.Dec()

	if !result.Success {
		self.counters.State.ItemsFailed.Inc()
		self.log.WithError(result.Err()).WithField("employee_id", employee.ID).Warn("Disbursement failed")
		run.update(employee.ID, func(status *RunStatus) {
			status.State = StateFailed
			status.Reason = result.Error
			status.err = result.Err()
		})
		return
	}

	err := self.history.Record(context.WithoutCancel(ctx), result.Reference, "payroll:"+result.HistoryKind())
	if err != nil {
		self.log.WithError(err).WithField("reference", result.Reference).Error("Failed to record disbursement")
	}

	self.counters.State.ItemsSucceeded.Inc()
	run.update(employee.ID, func(status *RunStatus) {
		status.State = StateCompleted
		status.Reference = result.Reference
	})
}

type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

func (self State) IsTerminal() bool {
	return self == StateCompleted || self == StateFailed
}

type RunStatus struct {
	EmployeeId    string `json:"employeeId"`
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress"`
	State         State  `json:"state"`

	// Settlement reference of a completed disbursement
	Reference string `json:"reference,omitempty"`

	// Why the disbursement failed
	Reason string `json:"reason,omitempty"`

	err error
}

func (self RunStatus) Err() error {
	return self.err
}

// Progress of one payroll run. Lives only in memory.
type Run struct {
	ID       string                `json:"id"`
	Employer string                `json:"employer"`
	Order    []string              `json:"order"`
	Statuses map[string]*RunStatus `json:"statuses"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	mtx        sync.Mutex
	onProgress ProgressFunc
}

func newRun(id, employer string, employees []*model.Employee, onProgress ProgressFunc) *Run {
	run := &Run{
		ID:         id,
		Employer:   employer,
		Order:      make([]string, 0, len(employees)),
		Statuses:   make(map[string]*RunStatus, len(employees)),
		StartedAt:  time.Now(),
		onProgress: onProgress,
	}
	for _, employee := range employees {
		run.Order = append(run.Order, employee.ID)
		run.Statuses[employee.ID] = &RunStatus{
			EmployeeId:    employee.ID,
			Name:          employee.Name,
			WalletAddress: employee.WalletAddress,
			State:         StatePending,
		}
	}
	return run
}

// Progress is reported under the lock, so consumers see changes in order
func (self *Run) update(employeeId string, f func(*RunStatus)) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	status := self.Statuses[employeeId]
	f(status)

	if status.State == StateCompleted {
		self.Succeeded++
	} else if status.State == StateFailed {
		self.Failed++
	}

	if self.onProgress != nil {
		self.onProgress(*status)
	}
}

func (self *Run) finish() {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.FinishedAt = time.Now()
}

// Copy of the item's status
func (self *Run) Status(employeeId string) (status RunStatus, ok bool) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	s, ok := self.Statuses[employeeId]
	if !ok {
		return
	}
	return *s, true
}
