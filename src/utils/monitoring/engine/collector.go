package monitor_engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

type metric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	load      func() float64
}

type Collector struct {
	monitor *Monitor
	metrics []metric
}

func NewCollector() *Collector {
	return &Collector{}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m

	labels := prometheus.Labels{
		"app": "shadowlink",
	}

	gauge := func(name string, v func() float64) {
		self.metrics = append(self.metrics, metric{prometheus.NewDesc(name, "", nil, labels), prometheus.GaugeValue, v})
	}
	counter := func(name string, v *atomic.Uint64) {
		self.metrics = append(self.metrics, metric{prometheus.NewDesc(name, "", nil, labels), prometheus.CounterValue, func() float64 { return float64(v.Load()) }})
	}

	r := &m.Report

	gauge("start_timestamp", func() float64 { return float64(r.Run.State.StartTimestamp.Load()) })
	gauge("up_for_seconds", func() float64 { return float64(r.Run.State.UpForSeconds.Load()) })
	counter("error_startup", &r.Run.Errors.NumStartupErrors)

	// Settlement
	counter("settlement_deposits_submitted", &r.Settlement.State.DepositsSubmitted)
	counter("settlement_withdrawals_submitted", &r.Settlement.State.WithdrawalsSubmitted)
	counter("settlement_transfers_submitted", &r.Settlement.State.TransfersSubmitted)
	counter("settlement_confirmed", &r.Settlement.State.Confirmed)
	counter("settlement_retries_requested", &r.Settlement.State.RetriesRequested)
	counter("settlement_balance_queries", &r.Settlement.State.BalanceQueries)
	gauge("settlement_last_confirmation_ms", func() float64 { return float64(r.Settlement.State.LastConfirmationMs.Load()) })
	counter("error_settlement_pool_request", &r.Settlement.Errors.PoolRequest)
	counter("error_settlement_ledger_request", &r.Settlement.Errors.LedgerRequest)
	counter("error_settlement_invalid_payload", &r.Settlement.Errors.InvalidPayload)
	counter("error_settlement_signer_rejected", &r.Settlement.Errors.SignerRejected)
	counter("error_settlement_expired", &r.Settlement.Errors.SettlementExpired)
	counter("error_settlement_failed", &r.Settlement.Errors.SettlementFailed)
	counter("error_settlement_confirmation_unknown", &r.Settlement.Errors.Unknown)

	// Workflows
	counter("workflow_tenders_created", &r.Workflow.State.TendersCreated)
	counter("workflow_bids_placed", &r.Workflow.State.BidsPlaced)
	counter("workflow_winners_selected", &r.Workflow.State.WinnersSelected)
	counter("workflow_work_submitted", &r.Workflow.State.WorkSubmitted)
	counter("workflow_tenders_paid", &r.Workflow.State.TendersPaid)
	counter("workflow_invoices_created", &r.Workflow.State.InvoicesCreated)
	counter("workflow_invoices_paid", &r.Workflow.State.InvoicesPaid)
	counter("workflow_invoices_canceled", &r.Workflow.State.InvoicesCanceled)
	counter("workflow_registrations", &r.Workflow.State.Registrations)
	counter("error_workflow_rejected", &r.Workflow.Errors.Rejected)
	counter("error_workflow_already_finalized", &r.Workflow.Errors.AlreadyFinalized)
	counter("error_workflow_store", &r.Workflow.Errors.StoreErrors)

	// Payroll
	counter("payroll_runs_started", &r.Payroll.State.RunsStarted)
	counter("payroll_runs_finished", &r.Payroll.State.RunsFinished)
	counter("payroll_items_succeeded", &r.Payroll.State.ItemsSucceeded)
	counter("payroll_items_failed", &r.Payroll.State.ItemsFailed)
	gauge("payroll_items_in_progress", func() float64 { return float64(r.Payroll.State.ItemsInProgress.Load()) })

	// History and notifications
	counter("history_records_saved", &r.History.State.RecordsSaved)
	counter("history_records_dropped", &r.History.State.RecordsDropped)
	counter("error_history_db_insert", &r.History.Errors.DbInsert)
	counter("notifier_messages_published", &r.Notifier.State.MessagesPublished)
	counter("error_notifier_publish", &r.Notifier.Errors.Publish)
	counter("error_notifier_persistent", &r.Notifier.Errors.PersistentError)

	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range self.metrics {
		ch <- m.desc
	}
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range self.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.load())
	}
}
