package settlement

import (
	"github.com/warp-contracts/shadowlink/src/utils/model"
)

type Operation string

const (
	OperationDeposit  Operation = "deposit"
	OperationWithdraw Operation = "withdraw"
	OperationTransfer Operation = "transfer"
)

// Outcome of every deposit, withdraw and transfer call. Never nil.
type Result struct {
	Success   bool                 `json:"success"`
	Reference string               `json:"reference,omitempty"`
	Error     string               `json:"error,omitempty"`
	Operation Operation            `json:"operation"`
	Kind      model.SettlementType `json:"kind,omitempty"`

	err     error
	request *request
}

func newResult(req *request) *Result {
	return &Result{
		Operation: req.Operation,
		Kind:      req.Kind,
		request:   req,
	}
}

func (self *Result) succeed(reference string) *Result {
	self.Success = true
	self.Reference = reference
	self.Error = ""
	self.err = nil
	return self
}

func (self *Result) fail(err error) *Result {
	self.Success = false
	self.err = err
	if err != nil {
		self.Error = err.Error()
	}
	return self
}

// Typed cause of the failure, nil upon success
func (self *Result) Err() error {
	return self.err
}

// Is it worth starting a fresh attempt through Gateway.Retry
func (self *Result) IsRetryable() bool {
	return !self.Success && self.request != nil && IsRetryable(self.err)
}

// Settlement reference and kind used in the audit log
func (self *Result) HistoryKind() string {
	if self.Operation == OperationTransfer {
		return string(self.Operation) + ":" + string(self.Kind)
	}
	return string(self.Operation)
}

// Parameters of one operation, kept for retrying
type request struct {
	Operation Operation
	Kind      model.SettlementType

	// Party that signs. Sender of transfers, owner of deposits and withdrawals
	Owner     string
	Recipient string

	// Minor units
	Amount uint64
}

type DepositRequest struct {
	Party  string
	Amount uint64
}

type WithdrawRequest struct {
	Party  string
	Amount uint64
}

type TransferRequest struct {
	Sender    string
	Recipient string
	Amount    uint64
	Kind      model.SettlementType
}

type Balance struct {
	// Minor units available in the wallet
	Available uint64 `json:"available"`

	// Minor units deposited in the shielded pool
	Shielded uint64 `json:"shielded"`
}

// Successful result of an operation settled outside of the Gateway
func NewSuccess(operation Operation, kind model.SettlementType, reference string) *Result {
	return (&Result{Operation: operation, Kind: kind}).succeed(reference)
}

func NewFailure(operation Operation, kind model.SettlementType, err error) *Result {
	return (&Result{Operation: operation, Kind: kind}).fail(err)
}
