package tender

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/store"
)

// Settles every transfer, optionally waiting until a number of calls arrive
type fakeSettler struct {
	mtx       sync.Mutex
	fail      error
	requests  []settlement.TransferRequest
	barrier   *sync.WaitGroup
	hook      func()
	reference int
}

func (self *fakeSettler) Transfer(ctx context.Context, req settlement.TransferRequest, signer settlement.Signer) *settlement.Result {
	self.mtx.Lock()
	self.requests = append(self.requests, req)
	self.reference++
	reference := fmt.Sprintf("sig-%d", self.reference)
	fail := self.fail
	barrier := self.barrier
	hook := self.hook
	self.mtx.Unlock()

	if hook != nil {
		hook()
	}

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}

	if fail != nil {
		return settlement.NewFailure(settlement.OperationTransfer, req.Kind, fail)
	}
	if ctx.Err() != nil {
		return settlement.NewFailure(settlement.OperationTransfer, req.Kind, settlement.ErrConfirmationUnknown)
	}
	return settlement.NewSuccess(settlement.OperationTransfer, req.Kind, reference)
}

func (self *fakeSettler) calls() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.requests)
}

type fakeHistory struct {
	mtx     sync.Mutex
	records []string
}

func (self *fakeHistory) Record(ctx context.Context, reference, kind string) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.records = append(self.records, kind+"/"+reference)
	return nil
}

// Runs a hook once right before the next bid write
type hookedBids struct {
	store.Collection[model.Bid]

	mtx          sync.Mutex
	beforeUpdate func()
	beforeDelete func()
}

func (self *hookedBids) take(hook *func()) func() {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	f := *hook
	*hook = nil
	return f
}

func (self *hookedBids) UpdateOne(ctx context.Context, key string, guard store.Filter, changes store.Changes) error {
	if f := self.take(&self.beforeUpdate); f != nil {
		f()
	}
	return self.Collection.UpdateOne(ctx, key, guard, changes)
}

func (self *hookedBids) DeleteOne(ctx context.Context, key string, guard store.Filter) error {
	if f := self.take(&self.beforeDelete); f != nil {
		f()
	}
	return self.Collection.DeleteOne(ctx, key, guard)
}
