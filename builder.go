package paypresto

import (
	"encoding/hex"
	"fmt"
	"math"

	script "github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"
)

// Serialized size constants for fee estimation. A signed P2PKH input is 148
// bytes: 36 outpoint + 4 sequence + 1 script length + 107 unlocking script.
const (
	txOverheadSize  = 8 // version + locktime
	p2pkhInputSize  = 148
	outputValueSize = 8
)

// resolvedOutput is an Output with its locking script resolved once at
// construction time.
type resolvedOutput struct {
	script   *script.Script
	satoshis uint64
	data     bool
}

// lockingScript resolves the output's locking condition to a script.
func (o Output) lockingScript() (*script.Script, error) {
	switch {
	case o.To != "":
		addr, err := script.NewAddressFromString(o.To)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		return p2pkh.Lock(addr)
	case o.Script != "":
		s, err := script.NewFromHex(o.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		return s, nil
	case len(o.Data) > 0:
		s := &script.Script{}
		if err := s.AppendOpcodes(script.OpFALSE, script.OpRETURN); err != nil {
			return nil, err
		}
		for _, chunk := range o.Data {
			if err := s.AppendPushData(chunk); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
	return nil, ErrInvalidOutput
}

// resolveOutputs resolves all outputs, classifying data carriers.
func resolveOutputs(outputs []Output) ([]resolvedOutput, error) {
	resolved := make([]resolvedOutput, 0, len(outputs))
	for _, o := range outputs {
		s, err := o.lockingScript()
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, resolvedOutput{
			script:   s,
			satoshis: o.Satoshis,
			data:     isDataScript(s),
		})
	}
	return resolved, nil
}

// isDataScript reports whether s is an OP_RETURN data carrier, with or
// without the leading OP_FALSE.
func isDataScript(s *script.Script) bool {
	b := []byte(*s)
	if len(b) == 0 {
		return false
	}
	if b[0] == script.OpRETURN {
		return true
	}
	return len(b) >= 2 && b[0] == script.OpFALSE && b[1] == script.OpRETURN
}

// varintSize returns the serialized size of a Bitcoin varint.
func varintSize(n uint64) uint64 {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// estimateFee prices the estimated serialized transaction size against the
// rate table. Bytes of data outputs are billed at the data rate, everything
// else at the standard rate. The result is rounded up.
func estimateFee(inputCount int, outputs []resolvedOutput, rates FeeRates) uint64 {
	standard := uint64(txOverheadSize)
	standard += varintSize(uint64(inputCount))
	standard += varintSize(uint64(len(outputs)))
	standard += uint64(inputCount) * p2pkhInputSize

	var data uint64
	for _, o := range outputs {
		n := uint64(outputValueSize)
		n += varintSize(uint64(len(*o.script)))
		n += uint64(len(*o.script))
		if o.data {
			data += n
		} else {
			standard += n
		}
	}

	fee := float64(standard)*rates.Standard + float64(data)*rates.Data
	return uint64(math.Ceil(fee))
}

// buildTx assembles an unsigned transaction from the payment's current
// inputs and outputs. Inputs with no script are assumed to pay the derived
// address. Surplus funding above the dust limit goes to the change address.
func (p *Payment) buildTx() (*transaction.Transaction, error) {
	ownScript, err := p.ownLockingScript()
	if err != nil {
		return nil, err
	}

	unlocker, err := p2pkh.Unlock(p.key, nil)
	if err != nil {
		return nil, NewPaymentError(ErrCodeBuildFailed, "deriving unlocker failed", err)
	}

	tx := transaction.NewTransaction()
	for _, in := range p.inputs.all() {
		prevScript := in.Script
		if prevScript == "" {
			prevScript = hex.EncodeToString(*ownScript)
		}
		if err := tx.AddInputFrom(in.TxID, in.Vout, prevScript, in.Satoshis, unlocker); err != nil {
			return nil, NewPaymentError(ErrCodeBuildFailed, "adding input failed", err).
				WithDetails("txid", in.TxID).
				WithDetails("vout", in.Vout)
		}
	}

	for _, o := range p.resolved {
		tx.AddOutput(&transaction.TransactionOutput{
			LockingScript: o.script,
			Satoshis:      o.satoshis,
		})
	}

	total := p.inputs.total()
	required := p.outputSum() + estimateFee(p.inputs.count(), p.resolved, p.rates)
	if total > required && total-required > DustLimit {
		if err := tx.PayToAddress(p.changeAddress, total-required); err != nil {
			return nil, NewPaymentError(ErrCodeBuildFailed, "adding change output failed", err)
		}
	}

	return tx, nil
}

// ownLockingScript derives the P2PKH locking script of the payment's own
// address.
func (p *Payment) ownLockingScript() (*script.Script, error) {
	addr, err := script.NewAddressFromPublicKey(p.key.PubKey(), true)
	if err != nil {
		return nil, NewPaymentError(ErrCodeBuildFailed, "deriving address failed", err)
	}
	return p2pkh.Lock(addr)
}
