package payroll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp-contracts/shadowlink/src/utils/settlement"
)

type fakeGateway struct {
	mtx       sync.Mutex
	failFor   map[string]error
	requests  []settlement.TransferRequest
	pending   map[*settlement.Pending]settlement.TransferRequest
	awaitTime time.Duration
	awaiting  int
	maxAwait  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		failFor: make(map[string]error),
		pending: make(map[*settlement.Pending]settlement.TransferRequest),
	}
}

func (self *fakeGateway) outcome(req settlement.TransferRequest, index int) *settlement.Result {
	if err, ok := self.failFor[req.Recipient]; ok {
		return settlement.NewFailure(settlement.OperationTransfer, req.Kind, err)
	}
	return settlement.NewSuccess(settlement.OperationTransfer, req.Kind, fmt.Sprintf("sig-%s-%d", req.Recipient, index))
}

func (self *fakeGateway) Transfer(ctx context.Context, req settlement.TransferRequest, signer settlement.Signer) *settlement.Result {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.requests = append(self.requests, req)
	return self.outcome(req, len(self.requests))
}

func (self *fakeGateway) Dispatch(ctx context.Context, req settlement.TransferRequest, signer settlement.Signer) (*settlement.Pending, *settlement.Result) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.requests = append(self.requests, req)
	pending := &settlement.Pending{}
	self.pending[pending] = req
	return pending, nil
}

func (self *fakeGateway) Await(ctx context.Context, pending *settlement.Pending) *settlement.Result {
	self.mtx.Lock()
	self.awaiting++
	if self.awaiting > self.maxAwait {
		self.maxAwait = self.awaiting
	}
	req := self.pending[pending]
	self.mtx.Unlock()

	time.Sleep(self.awaitTime)

	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.awaiting--
	return self.outcome(req, len(self.requests))
}

func (self *fakeGateway) calls() int {
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
	self.records = append(self.records, kind)
	return nil
}

type fakeRegistry map[string]bool

func (self fakeRegistry) IsRegistered(ctx context.Context, address string) (bool, error) {
	return self[address], nil
}
