package cmd

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/warp-contracts/shadowlink/src/engine"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
)

var errNoSigner = errors.New("signer key not configured, set SHADOWLINK_SIGNER_PRIVATE_KEY")

// Configured signer, nil when there's no key
func loadSigner() (signer settlement.Signer, err error) {
	if conf.Signer.PrivateKey == "" {
		return nil, nil
	}
	return settlement.NewKeySignerFromBase58(conf.Signer.PrivateKey)
}

// Starts the engine, runs f and flushes the audit log before returning
func withEngine(f func(e *engine.Engine) error) (err error) {
	e, err := engine.New(conf)
	if err != nil {
		return
	}

	err = e.Start()
	if err != nil {
		return
	}
	defer e.StopWait()

	return f(e)
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
