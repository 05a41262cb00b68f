package history

import (
	"context"
	"sync"
	"time"

	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring/report"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/task"
)

// Append-only audit log of settlement references.
// Records are batched and flushed in the background.
type Recorder struct {
	*task.Task

	hole     *task.Hole[*model.SettlementRecord]
	records  store.Collection[model.SettlementRecord]
	counters *report.HistoryReport

	mtx    sync.RWMutex
	closed bool
	input  chan *model.SettlementRecord
}

func NewRecorder(config *config.Config) (self *Recorder) {
	self = new(Recorder)
	self.counters = &report.HistoryReport{}
	self.input = make(chan *model.SettlementRecord, config.History.StoreBatchSize)

	self.hole = task.NewHole[*model.SettlementRecord](config, "history-hole").
		WithBatchSize(config.History.StoreBatchSize).
		WithBackoff(config.History.StoreBackoffMaxElapsedTime, config.History.StoreBackoffMaxInterval).
		WithInputChannel(self.input).
		WithOnFlush(config.History.StoreInterval, self.flush)

	self.Task = task.NewTask(config, "history").
		WithSubtask(self.hole.Task).
		WithOnStop(self.closeInput)

	return
}

func (self *Recorder) WithStore(records store.Collection[model.SettlementRecord]) *Recorder {
	self.records = records
	return self
}

func (self *Recorder) WithMonitor(monitor monitoring.Monitor) *Recorder {
	self.counters = monitor.GetReport().History
	return self
}

func (self *Recorder) closeInput() {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.closed {
		return
	}
	self.closed = true
	close(self.input)
}

// Queues the reference for saving
func (self *Recorder) Record(ctx context.Context, reference, kind string) (err error) {
	record := &model.SettlementRecord{
		Reference: reference,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}

	legs := settlement.ParseReference(reference)
	if len(legs) > 1 {
		err = record.Details.Set(map[string]interface{}{"legs": legs})
	} else {
		err = record.Details.Set(nil)
	}
	if err != nil {
		return
	}

	self.mtx.RLock()
	defer self.mtx.RUnlock()

	if self.closed {
		self.counters.State.RecordsDropped.Inc()
		self.Log.WithField("reference", reference).Error("Recorder stopped, record dropped")
		return nil
	}

	// Blocks until there's room, the settlement already happened and can't be lost
	self.input <- record
	return nil
}

// Latest records, newest first
func (self *Recorder) Recent(ctx context.Context, n int) ([]*model.SettlementRecord, error) {
	if n <= 0 {
		n = self.Config.History.RecentSize
	}
	return self.records.FindMany(ctx, nil, store.Descending(), store.Limit(n))
}

func (self *Recorder) flush(data []*model.SettlementRecord) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	for _, record := range data {
		if record.ID != 0 {
			// Saved by a previous attempt
			continue
		}

		err = self.records.Create(ctx, record)
		if err != nil {
			self.counters.Errors.DbInsert.Inc()
			self.Log.WithError(err).WithField("reference", record.Reference).Error("Failed to save settlement record")
			return
		}
		self.counters.State.RecordsSaved.Inc()
	}
	return
}
