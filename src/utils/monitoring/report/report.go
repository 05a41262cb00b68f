package report

type Report struct {
	Run        *RunReport        `json:"run,omitempty"`
	Settlement *SettlementReport `json:"settlement,omitempty"`
	Workflow   *WorkflowReport   `json:"workflow,omitempty"`
	Payroll    *PayrollReport    `json:"payroll,omitempty"`
	History    *HistoryReport    `json:"history,omitempty"`
	Notifier   *NotifierReport   `json:"notifier,omitempty"`
}
