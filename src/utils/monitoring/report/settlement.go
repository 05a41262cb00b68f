package report

import "go.uber.org/atomic"

type SettlementErrors struct {
	PoolRequest       atomic.Uint64 `json:"pool_request"`
	LedgerRequest     atomic.Uint64 `json:"ledger_request"`
	InvalidPayload    atomic.Uint64 `json:"invalid_payload"`
	SignerRejected    atomic.Uint64 `json:"signer_rejected"`
	SettlementExpired atomic.Uint64 `json:"settlement_expired"`
	SettlementFailed  atomic.Uint64 `json:"settlement_failed"`
	Unknown           atomic.Uint64 `json:"confirmation_unknown"`
}

type SettlementState struct {
	DepositsSubmitted    atomic.Uint64 `json:"deposits_submitted"`
	WithdrawalsSubmitted atomic.Uint64 `json:"withdrawals_submitted"`
	TransfersSubmitted   atomic.Uint64 `json:"transfers_submitted"`
	Confirmed            atomic.Uint64 `json:"confirmed"`
	RetriesRequested     atomic.Uint64 `json:"retries_requested"`
	BalanceQueries       atomic.Uint64 `json:"balance_queries"`

	// Time from dispatch to confirmation of the last settlement
	LastConfirmationMs atomic.Int64 `json:"last_confirmation_ms"`
}

type SettlementReport struct {
	State  SettlementState  `json:"state"`
	Errors SettlementErrors `json:"errors"`
}
