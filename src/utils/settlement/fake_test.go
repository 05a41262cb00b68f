package settlement

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Builds an unsigned instruction with the given signers first and one extra program key
func buildInstruction(format Format, signers ...[32]byte) []byte {
	var msg []byte
	if format == FormatVersioned {
		msg = append(msg, versionPrefix)
	}

	// Header
	msg = append(msg, byte(len(signers)), 0, 1)

	keys := append([][32]byte{}, signers...)
	program := [32]byte{}
	for i := range program {
		program[i] = 0xaa
	}
	keys = append(keys, program)

	msg = append(msg, encodeCompactU16(len(keys))...)
	for _, k := range keys {
		msg = append(msg, k[:]...)
	}

	// Stale checkpoint
	msg = append(msg, make([]byte, checkpointLength)...)

	// Opaque instructions section
	msg = append(msg, 1, byte(len(keys)-1), 1, 0, 2, 0xde, 0xad)
	if format == FormatVersioned {
		// No address table lookups
		msg = append(msg, 0)
	}

	out := encodeCompactU16(len(signers))
	out = append(out, make([]byte, len(signers)*signatureLength)...)
	return append(out, msg...)
}

func publicKeyOf(signer *KeySigner) (out [32]byte) {
	copy(out[:], base58.Decode(signer.Address()))
	return
}

func newTestSigner(seed byte) *KeySigner {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return NewKeySigner(ed25519.NewKeyFromSeed(s))
}

type rejectingSigner struct {
	*KeySigner
}

func (self *rejectingSigner) SignTransaction(ctx context.Context, message []byte) ([]byte, error) {
	return nil, ErrSignerRejected
}

func (self *rejectingSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return nil, ErrSignerRejected
}

// Stands in for the pool API
type fakePool struct {
	mtx sync.Mutex

	server *httptest.Server
	format Format

	prepared   map[string]int
	mints      []string
	internal   []internalTransferRequest
	failNext   string
	balance    balanceResponse
	balance5xx int
}

func newFakePool() (self *fakePool) {
	self = &fakePool{prepared: make(map[string]int)}

	mux := http.NewServeMux()
	for _, path := range []string{"/pool/deposit", "/pool/withdraw", "/transfer/external"} {
		path := path
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			var req unsignedRequest
			_ = json.NewDecoder(r.Body).Decode(&req)

			self.mtx.Lock()
			self.prepared[path]++
			self.mints = append(self.mints, req.TokenMint)
			format := self.format
			failure := self.failNext
			self.failNext = ""
			self.mtx.Unlock()

			if failure != "" {
				writeJSON(w, unsignedResponse{Error: failure})
				return
			}

			key, _ := PublicKey(req.Wallet)
			writeJSON(w, unsignedResponse{
				UnsignedTxBase64: base64.StdEncoding.EncodeToString(buildInstruction(format, key)),
			})
		})
	}

	mux.HandleFunc("/transfer/internal", func(w http.ResponseWriter, r *http.Request) {
		var req internalTransferRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		self.mtx.Lock()
		self.internal = append(self.internal, req)
		failure := self.failNext
		self.failNext = ""
		self.mtx.Unlock()

		if failure != "" {
			writeJSON(w, internalTransferResponse{Success: false, Error: failure})
			return
		}
		writeJSON(w, internalTransferResponse{Success: true, TxSignature: "TX1:first TX2:second"})
	})

	mux.HandleFunc("/pool/balance/", func(w http.ResponseWriter, r *http.Request) {
		self.mtx.Lock()
		defer self.mtx.Unlock()
		if self.balance5xx > 0 {
			self.balance5xx--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, self.balance)
	})

	self.server = httptest.NewServer(mux)
	return
}

func (self *fakePool) preparedCount(path string) int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.prepared[path]
}

// Stands in for the ledger JSON-RPC node
type fakeLedger struct {
	mtx sync.Mutex

	server *httptest.Server

	blockhash            string
	lastValidBlockHeight uint64
	height               uint64

	// Number of status polls before the signature is confirmed, negative means never
	confirmAfter int
	polls        int
	statusErr    json.RawMessage

	// Status lookups fail with an RPC error
	statusUnavailable bool

	// Broadcast, but the answer comes late
	sendDelay time.Duration

	// Instruction refused before broadcasting
	sendErr *RPCError

	submitted [][]byte
}

func newFakeLedger() (self *fakeLedger) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i + 1)
	}

	self = &fakeLedger{
		blockhash:            base58.Encode(hash),
		lastValidBlockHeight: 150,
		height:               100,
		confirmAfter:         1,
	}

	self.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		self.mtx.Lock()
		defer self.mtx.Unlock()

		var result interface{}
		switch req.Method {
		case "getLatestBlockhash":
			result = map[string]interface{}{
				"context": map[string]uint64{"slot": 1},
				"value": Checkpoint{
					Blockhash:            self.blockhash,
					LastValidBlockHeight: self.lastValidBlockHeight,
				},
			}
		case "sendTransaction":
			if self.sendErr != nil {
				writeJSON(w, rpcResponse{ID: req.ID, Error: self.sendErr})
				return
			}

			var encoded string
			_ = json.Unmarshal(req.Params[0], &encoded)
			raw, _ := base64.StdEncoding.DecodeString(encoded)
			self.submitted = append(self.submitted, raw)

			instruction, err := DecodeInstruction(raw)
			if err != nil {
				writeJSON(w, rpcResponse{ID: req.ID, Error: &RPCError{Code: -32602, Message: err.Error()}})
				return
			}
			result = instruction.Reference()

			if self.sendDelay > 0 {
				time.Sleep(self.sendDelay)
			}
		case "getSignatureStatuses":
			self.polls++
			if self.statusUnavailable {
				writeJSON(w, rpcResponse{ID: req.ID, Error: &RPCError{Code: -32005, Message: "node is behind"}})
				return
			}
			var status *SignatureStatus
			switch {
			case len(self.statusErr) > 0:
				status = &SignatureStatus{Slot: 2, Err: self.statusErr, ConfirmationStatus: "processed"}
			case self.confirmAfter >= 0 && self.polls >= self.confirmAfter:
				status = &SignatureStatus{Slot: 2, ConfirmationStatus: "confirmed"}
			}
			result = map[string]interface{}{
				"context": map[string]uint64{"slot": 2},
				"value":   []*SignatureStatus{status},
			}
		case "getBlockHeight":
			result = self.height
		default:
			writeJSON(w, rpcResponse{ID: req.ID, Error: &RPCError{Code: -32601, Message: "method not found"}})
			return
		}

		buf, _ := json.Marshal(result)
		writeJSON(w, rpcResponse{ID: req.ID, Result: buf})
	}))
	return
}

func (self *fakeLedger) lastSubmitted() []byte {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if len(self.submitted) == 0 {
		return nil
	}
	return self.submitted[len(self.submitted)-1]
}

func (self *fakeLedger) submittedCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.submitted)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (self *fakePool) lastMint() string {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if len(self.mints) == 0 {
		return ""
	}
	return self.mints[len(self.mints)-1]
}

// Gives up as soon as it's asked to sign
type cancellingSigner struct {
	*KeySigner
	cancel context.CancelFunc
}

func (self *cancellingSigner) SignTransaction(ctx context.Context, message []byte) ([]byte, error) {
	self.cancel()
	return nil, ctx.Err()
}

func (self *cancellingSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	self.cancel()
	return nil, ctx.Err()
}
