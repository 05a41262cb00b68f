package report

import "go.uber.org/atomic"

type PayrollState struct {
	RunsStarted     atomic.Uint64 `json:"runs_started"`
	RunsFinished    atomic.Uint64 `json:"runs_finished"`
	ItemsSucceeded  atomic.Uint64 `json:"items_succeeded"`
	ItemsFailed     atomic.Uint64 `json:"items_failed"`
	ItemsInProgress atomic.Int64  `json:"items_in_progress"`
}

type PayrollReport struct {
	State PayrollState `json:"state"`
}
