package report

import "go.uber.org/atomic"

type HistoryErrors struct {
	DbInsert atomic.Uint64 `json:"db_insert"`
}

type HistoryState struct {
	RecordsSaved   atomic.Uint64 `json:"records_saved"`
	RecordsDropped atomic.Uint64 `json:"records_dropped"`
}

type HistoryReport struct {
	State  HistoryState  `json:"state"`
	Errors HistoryErrors `json:"errors"`
}
