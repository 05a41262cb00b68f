package monitor_engine

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring/report"
	"github.com/warp-contracts/shadowlink/src/utils/task"
)

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report report.Report

	collector *Collector
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:        &report.RunReport{},
		Settlement: &report.SettlementReport{},
		Workflow:   &report.WorkflowReport{},
		Payroll:    &report.PayrollReport{},
		History:    &report.HistoryReport{},
		Notifier:   &report.NotifierReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(nil, "monitor").
		WithPeriodicSubtaskFunc(30*time.Second, self.monitorUptime)
	return
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

func (self *Monitor) monitorUptime() (err error) {
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))
	return
}

func (self *Monitor) IsOK() bool {
	if self.Report.Run.Errors.NumStartupErrors.Load() > 0 {
		return false
	}

	// Audit records can't be lost
	return self.Report.History.State.RecordsDropped.Load() == 0
}

func (self *Monitor) OnGetState(c *gin.Context) {
	// Fill data
	_ = self.monitorUptime()

	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
