package settlement

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/warp-contracts/shadowlink/src/utils/config"
)

var errPending = errors.New("confirmation pending")

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (self *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", self.Code, self.Message)
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// Freshness token attached to an instruction before signing
type Checkpoint struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

func (self *SignatureStatus) Failed() bool {
	return len(self.Err) > 0 && string(self.Err) != "null"
}

var commitmentLevels = map[string]int{
	"processed": 0,
	"confirmed": 1,
	"finalized": 2,
}

// Did the status reach at least the given commitment
func (self *SignatureStatus) Reached(commitment string) bool {
	have, ok := commitmentLevels[self.ConfirmationStatus]
	if !ok {
		return false
	}
	return have >= commitmentLevels[commitment]
}

// JSON-RPC client of the ledger node
type LedgerClient struct {
	*baseClient
	commitment     string
	pollInterval   time.Duration
	confirmTimeout time.Duration
	id             atomic.Uint64
}

func NewLedgerClient(config *config.Config) (self *LedgerClient) {
	self = new(LedgerClient)
	self.commitment = config.Ledger.Commitment
	self.pollInterval = config.Ledger.ConfirmPollInterval
	self.confirmTimeout = config.Ledger.ConfirmTimeout
	self.baseClient = newBaseClient("ledger-client", clientConfig{
		Url:                 config.Ledger.Url,
		RequestTimeout:      config.Ledger.RequestTimeout,
		DialerTimeout:       config.Gateway.DialerTimeout,
		DialerKeepAlive:     config.Gateway.DialerKeepAlive,
		TLSHandshakeTimeout: config.Gateway.TLSHandshakeTimeout,
		IdleConnTimeout:     config.Gateway.IdleConnTimeout,
		ReadRetryCount:      config.Ledger.ReadRetryCount,
	})
	return
}

func (self *LedgerClient) call(ctx context.Context, method string, out interface{}, params ...interface{}) (err error) {
	if params == nil {
		params = []interface{}{}
	}

	resp, err := self.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{
			Jsonrpc: "2.0",
			ID:      self.id.Add(1),
			Method:  method,
			Params:  params,
		}).
		SetResult(&rpcResponse{}).
		Post("")
	if err != nil {
		return
	}

	result, ok := resp.Result().(*rpcResponse)
	if !ok {
		return ErrBadResponse
	}
	if result.Error != nil {
		return result.Error
	}

	err = json.Unmarshal(result.Result, out)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, method, err)
	}
	return
}

func (self *LedgerClient) LatestCheckpoint(ctx context.Context) (out *Checkpoint, err error) {
	var result struct {
		Value Checkpoint `json:"value"`
	}
	err = self.call(idempotent(ctx), "getLatestBlockhash", &result, map[string]string{"commitment": self.commitment})
	if err != nil {
		return
	}
	if result.Value.Blockhash == "" {
		return nil, fmt.Errorf("%w: empty blockhash", ErrBadResponse)
	}
	return &result.Value, nil
}

// Broadcasts the signed instruction, returns its signature
func (self *LedgerClient) SendTransaction(ctx context.Context, raw []byte) (signature string, err error) {
	err = self.call(ctx, "sendTransaction", &signature,
		base64.StdEncoding.EncodeToString(raw),
		map[string]string{
			"encoding":            "base64",
			"preflightCommitment": self.commitment,
		})
	return
}

// Nil status means the ledger hasn't seen the signature yet
func (self *LedgerClient) SignatureStatus(ctx context.Context, signature string) (out *SignatureStatus, err error) {
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	err = self.call(idempotent(ctx), "getSignatureStatuses", &result, []string{signature})
	if err != nil {
		return
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

func (self *LedgerClient) BlockHeight(ctx context.Context) (out uint64, err error) {
	err = self.call(idempotent(ctx), "getBlockHeight", &out, map[string]string{"commitment": self.commitment})
	return
}

// Polls until the signature reaches the configured commitment, fails or the checkpoint lapses.
// Cancelling ctx or polling longer than ConfirmTimeout results in ErrConfirmationUnknown.
func (self *LedgerClient) Confirm(ctx context.Context, signature string, checkpoint *Checkpoint) (err error) {
	pollCtx := ctx
	if self.confirmTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, self.confirmTimeout)
		defer cancel()
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(self.pollInterval), pollCtx)

	err = backoff.Retry(func() error {
		// Unobserved status means the signature may have landed
		observed := true

		status, err := self.SignatureStatus(pollCtx, signature)
		if err != nil {
			observed = false
			self.log.WithError(err).WithField("signature", signature).Debug("Failed to get signature status")
		} else if status != nil {
			if status.Failed() {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrSettlementFailed, string(status.Err)))
			}
			if status.Reached(self.commitment) {
				return nil
			}
		}

		height, err := self.BlockHeight(pollCtx)
		if err != nil {
			return err
		}
		if height > checkpoint.LastValidBlockHeight {
			if !observed {
				return backoff.Permanent(fmt.Errorf("%w: %s: checkpoint lapsed while status was unavailable", ErrConfirmationUnknown, signature))
			}
			return backoff.Permanent(ErrSettlementExpired)
		}

		return errPending
	}, b)

	if err != nil && pollCtx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfirmationUnknown, signature, pollCtx.Err())
	}
	return
}
