package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring/report"
)

// Operations workflows settle through. Implemented by Gateway, faked in tests.
type Settler interface {
	Transfer(ctx context.Context, req TransferRequest, signer Signer) *Result
}

// The only component that talks to the pool and the ledger.
// Runs the unsigned instruction -> checkpoint -> sign -> submit -> confirm protocol.
// Never retries on its own, see Retry.
type Gateway struct {
	config   *config.Config
	log      *logrus.Entry
	counters *report.SettlementReport

	pool   *PoolClient
	ledger *LedgerClient
}

// Signed and submitted, waiting for the confirmation
type Pending struct {
	result     *Result
	checkpoint *Checkpoint
	started    time.Time

	// Set when nothing has to be awaited
	done bool
}

func NewGateway(config *config.Config) (self *Gateway) {
	self = new(Gateway)
	self.config = config
	self.log = logger.NewSublogger("gateway")
	self.pool = NewPoolClient(config)
	self.ledger = NewLedgerClient(config)

	// Discarded unless there's a monitor
	self.counters = &report.SettlementReport{}
	return
}

func (self *Gateway) WithMonitor(monitor monitoring.Monitor) *Gateway {
	self.counters = monitor.GetReport().Settlement
	return self
}

func (self *Gateway) Deposit(ctx context.Context, req DepositRequest, signer Signer) *Result {
	return self.execute(ctx, &request{
		Operation: OperationDeposit,
		Owner:     req.Party,
		Amount:    req.Amount,
	}, signer)
}

func (self *Gateway) Withdraw(ctx context.Context, req WithdrawRequest, signer Signer) *Result {
	return self.execute(ctx, &request{
		Operation: OperationWithdraw,
		Owner:     req.Party,
		Amount:    req.Amount,
	}, signer)
}

func (self *Gateway) Transfer(ctx context.Context, req TransferRequest, signer Signer) *Result {
	return self.execute(ctx, transferRequest(req), signer)
}

func transferRequest(req TransferRequest) *request {
	return &request{
		Operation: OperationTransfer,
		Kind:      req.Kind,
		Owner:     req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount,
	}
}

// Starts a fresh attempt of a failed operation. A new instruction and checkpoint are obtained,
// the previously signed payload is never resubmitted.
func (self *Gateway) Retry(ctx context.Context, previous *Result, signer Signer) *Result {
	if previous == nil || previous.request == nil {
		return (&Result{}).fail(ErrNotRetryable)
	}
	if !previous.IsRetryable() {
		return newResult(previous.request).fail(fmt.Errorf("%w: %v", ErrNotRetryable, previous.err))
	}

	self.counters.State.RetriesRequested.Inc()

	self.log.WithField("operation", previous.Operation).WithField("previous", previous.Error).Info("Retrying settlement")

	// Copy, the previous result stays untouched
	req := *previous.request
	return self.execute(ctx, &req, signer)
}

func (self *Gateway) Balance(ctx context.Context, address string) (out *Balance, err error) {
	self.counters.State.BalanceQueries.Inc()

	out, err = self.pool.Balance(ctx, address)
	if err != nil {
		self.counters.Errors.PoolRequest.Inc()
		self.log.WithError(err).WithField("address", address).Error("Failed to get balance")
	}
	return
}

func (self *Gateway) execute(ctx context.Context, req *request, signer Signer) *Result {
	pending, err := self.dispatch(ctx, req, signer)
	if err != nil {
		return self.finish(pending.failed(req, err))
	}
	return self.Await(ctx, pending)
}

// Prepares, signs and submits a transfer. Await needs to be called to get the outcome.
// Meant for batches that sign serially but confirm in parallel.
func (self *Gateway) Dispatch(ctx context.Context, req TransferRequest, signer Signer) (*Pending, *Result) {
	r := transferRequest(req)
	pending, err := self.dispatch(ctx, r, signer)
	if err != nil {
		return nil, self.finish(pending.failed(r, err))
	}
	return pending, nil
}

// Result of a dispatch that didn't finish. Keeps the reference of a possibly broadcast instruction.
func (self *Pending) failed(req *request, err error) *Result {
	if self == nil {
		return newResult(req).fail(err)
	}
	return self.result.fail(err)
}

func (self *Gateway) dispatch(ctx context.Context, req *request, signer Signer) (pending *Pending, err error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", ErrSignerMismatch)
	}
	if signer.Address() != req.Owner {
		return nil, fmt.Errorf("%w: signer %s, sender %s", ErrSignerMismatch, signer.Address(), req.Owner)
	}

	log := self.log.WithField("operation", req.Operation).
		WithField("kind", req.Kind).
		WithField("owner", req.Owner).
		WithField("amount", req.Amount)

	pending = &Pending{
		result:  newResult(req),
		started: time.Now(),
	}

	if req.Operation == OperationTransfer && req.Kind.IsInternal() {
		reference, err := self.transferInternal(ctx, req, signer)
		if err != nil {
			log.WithError(err).Warn("Internal transfer failed")
			return nil, err
		}
		self.countSubmitted(req)
		pending.result.succeed(reference)
		pending.done = true
		return pending, nil
	}

	// Unsigned instruction from the pool
	raw, err := self.pool.Prepare(ctx, req)
	if err != nil {
		self.counters.Errors.PoolRequest.Inc()
		log.WithError(err).Warn("Failed to prepare instruction")
		return nil, err
	}

	instruction, err := DecodeInstruction(raw)
	if err != nil {
		self.counters.Errors.InvalidPayload.Inc()
		log.WithError(err).Warn("Failed to decode instruction")
		return nil, err
	}

	// Fresh checkpoint
	pending.checkpoint, err = self.ledger.LatestCheckpoint(ctx)
	if err != nil {
		self.counters.Errors.LedgerRequest.Inc()
		log.WithError(err).Warn("Failed to get checkpoint")
		return nil, err
	}

	err = instruction.SetCheckpoint(pending.checkpoint.Blockhash)
	if err != nil {
		return nil, err
	}

	err = instruction.Sign(ctx, signer)
	if err != nil {
		if errors.Is(err, ErrSignerRejected) {
			self.counters.Errors.SignerRejected.Inc()
		}
		log.WithError(err).Info("Instruction not signed")
		return nil, err
	}

	// Nothing is submitted if the caller gave up while signing
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	reference, err := self.ledger.SendTransaction(ctx, instruction.Serialize())
	if err != nil {
		self.counters.Errors.LedgerRequest.Inc()

		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			// Node refused the instruction, nothing was broadcast
			log.WithError(err).Warn("Instruction rejected by the ledger")
			return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
		}

		// Request may have reached the node, the instruction could land
		pending.result.Reference = instruction.Reference()
		log.WithError(err).WithField("reference", pending.result.Reference).Error("Submission outcome unknown")
		return pending, fmt.Errorf("%w: %s: %v", ErrConfirmationUnknown, pending.result.Reference, err)
	}
	if reference == "" {
		reference = instruction.Reference()
	}
	pending.result.Reference = reference
	self.countSubmitted(req)

	log.WithField("reference", reference).
		WithField("format", instruction.Format).
		Debug("Instruction submitted")

	return pending, nil
}

// Waits for the outcome of a dispatched operation. Safe to call concurrently for different operations.
func (self *Gateway) Await(ctx context.Context, pending *Pending) *Result {
	if pending.done {
		return self.finish(pending.result)
	}

	reference := pending.result.Reference
	err := self.ledger.Confirm(ctx, reference, pending.checkpoint)
	if err != nil {
		return self.finish(pending.result.fail(err))
	}

	self.counters.State.LastConfirmationMs.Store(time.Since(pending.started).Milliseconds())

	return self.finish(pending.result.succeed(reference))
}

// Canonical message authorizing an internal transfer
func authorizationMessage(req *request, mint, nonce string) string {
	return fmt.Sprintf("shadowpay:transfer:%s:%s:%d:%s:%s", req.Owner, req.Recipient, req.Amount, mint, nonce)
}

func (self *Gateway) transferInternal(ctx context.Context, req *request, signer Signer) (reference string, err error) {
	nonce := xid.New().String()
	message := authorizationMessage(req, self.config.Asset.Mint, nonce)

	signature, err := signer.SignMessage(ctx, []byte(message))
	if err != nil {
		err = signerError(err)
		if errors.Is(err, ErrSignerRejected) {
			self.counters.Errors.SignerRejected.Inc()
		}
		return "", err
	}

	if err = ctx.Err(); err != nil {
		return "", err
	}

	reference, err = self.pool.TransferInternal(ctx, req, nonce, message, base58.Encode(signature))
	if err != nil {
		self.counters.Errors.PoolRequest.Inc()
		if errors.Is(err, ErrSettlementFailed) {
			return "", err
		}
		// Relayer may have settled the authorization
		return "", fmt.Errorf("%w: nonce %s: %v", ErrConfirmationUnknown, nonce, err)
	}
	return
}

func (self *Gateway) finish(result *Result) *Result {
	log := self.log.WithField("operation", result.Operation).
		WithField("kind", result.Kind).
		WithField("reference", result.Reference)

	if result.Success {
		self.counters.State.Confirmed.Inc()
		log.Info("Settlement confirmed")
		return result
	}

	switch {
	case errors.Is(result.err, ErrSettlementExpired):
		self.counters.Errors.SettlementExpired.Inc()
	case errors.Is(result.err, ErrSettlementFailed):
		self.counters.Errors.SettlementFailed.Inc()
	case errors.Is(result.err, ErrConfirmationUnknown):
		self.counters.Errors.Unknown.Inc()
	}

	log.WithError(result.err).Warn("Settlement unsuccessful")
	return result
}

func (self *Gateway) countSubmitted(req *request) {
	switch req.Operation {
	case OperationDeposit:
		self.counters.State.DepositsSubmitted.Inc()
	case OperationWithdraw:
		self.counters.State.WithdrawalsSubmitted.Inc()
	default:
		self.counters.State.TransfersSubmitted.Inc()
	}
}
