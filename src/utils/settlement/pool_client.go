package settlement

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/warp-contracts/shadowlink/src/utils/config"
)

type unsignedRequest struct {
	Wallet    string `json:"wallet"`
	Recipient string `json:"recipient,omitempty"`
	Amount    uint64 `json:"amount"`
	TokenMint string `json:"token_mint"`
}

type unsignedResponse struct {
	Success          *bool  `json:"success,omitempty"`
	UnsignedTxBase64 string `json:"unsigned_tx_base64"`
	Error            string `json:"error,omitempty"`
}

type internalTransferRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Token     string `json:"token"`
	TokenMint string `json:"token_mint"`
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type internalTransferResponse struct {
	Success     bool   `json:"success"`
	TxSignature string `json:"tx_signature"`
	Error       string `json:"error,omitempty"`
}

type balanceResponse struct {
	Available uint64 `json:"available"`
	Deposited uint64 `json:"deposited"`
}

// Client of the shielded pool relayer API
type PoolClient struct {
	*baseClient
	asset *config.Asset
}

func NewPoolClient(config *config.Config) (self *PoolClient) {
	self = new(PoolClient)
	self.asset = &config.Asset
	self.baseClient = newBaseClient("pool-client", clientConfig{
		Url:                 config.Gateway.Url,
		RequestTimeout:      config.Gateway.RequestTimeout,
		DialerTimeout:       config.Gateway.DialerTimeout,
		DialerKeepAlive:     config.Gateway.DialerKeepAlive,
		TLSHandshakeTimeout: config.Gateway.TLSHandshakeTimeout,
		IdleConnTimeout:     config.Gateway.IdleConnTimeout,
		LimiterInterval:     config.Gateway.LimiterInterval,
		LimiterBurstSize:    config.Gateway.LimiterBurstSize,
		ReadRetryCount:      config.Gateway.ReadRetryCount,
	})
	return
}

func (self *PoolClient) endpoint(req *request) (string, error) {
	switch req.Operation {
	case OperationDeposit:
		return "/pool/deposit", nil
	case OperationWithdraw:
		return "/pool/withdraw", nil
	case OperationTransfer:
		if !req.Kind.IsInternal() {
			return "/transfer/external", nil
		}
	}
	return "", fmt.Errorf("no unsigned instruction for %s %s", req.Operation, req.Kind)
}

// Gets the unsigned instruction for the operation
func (self *PoolClient) Prepare(ctx context.Context, req *request) (out []byte, err error) {
	endpoint, err := self.endpoint(req)
	if err != nil {
		return
	}

	body := unsignedRequest{
		Wallet:    req.Owner,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		TokenMint: self.asset.Mint,
	}

	resp, err := self.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&unsignedResponse{}).
		Post(endpoint)
	if err != nil {
		return
	}

	result, ok := resp.Result().(*unsignedResponse)
	if !ok {
		return nil, ErrBadResponse
	}

	if (result.Success != nil && !*result.Success) || result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, result.Error)
	}

	if result.UnsignedTxBase64 == "" {
		return nil, fmt.Errorf("%w: no instruction returned", ErrInvalidInstruction)
	}

	out, err = base64.StdEncoding.DecodeString(result.UnsignedTxBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	return
}

// Settles an internal transfer authorized by the sender's message signature
func (self *PoolClient) TransferInternal(ctx context.Context, req *request, nonce, message, signature string) (reference string, err error) {
	body := internalTransferRequest{
		Sender:    req.Owner,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Token:     self.asset.Symbol,
		TokenMint: self.asset.Mint,
		Nonce:     nonce,
		Message:   message,
		Signature: signature,
	}

	resp, err := self.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&internalTransferResponse{}).
		Post("/transfer/internal")
	if err != nil {
		return
	}

	result, ok := resp.Result().(*internalTransferResponse)
	if !ok {
		return "", ErrBadResponse
	}

	if !result.Success || result.TxSignature == "" {
		return "", fmt.Errorf("%w: %s", ErrSettlementFailed, result.Error)
	}

	return result.TxSignature, nil
}

func (self *PoolClient) Balance(ctx context.Context, address string) (out *Balance, err error) {
	resp, err := self.client.R().
		SetContext(idempotent(ctx)).
		SetPathParam("wallet", address).
		SetQueryParam("token_mint", self.asset.Mint).
		SetResult(&balanceResponse{}).
		Get("/pool/balance/{wallet}")
	if err != nil {
		return
	}

	result, ok := resp.Result().(*balanceResponse)
	if !ok {
		return nil, ErrBadResponse
	}

	return &Balance{
		Available: result.Available,
		Shielded:  result.Deposited,
	}, nil
}
