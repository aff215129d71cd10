package paypresto

// DustLimit is the minimum satoshi value the network treats as a relayable
// output. Invoices are always requested for at least DustLimit+1 satoshis.
const DustLimit = 546

// UTXO references an unspent transaction output usable as a transaction
// input.
type UTXO struct {
	// TxID is the hex-encoded id of the transaction holding the output.
	TxID string `json:"txid"`

	// Vout is the index of the output within that transaction.
	Vout uint32 `json:"vout"`

	// Satoshis is the value of the output.
	Satoshis uint64 `json:"satoshis"`

	// Script is the hex-encoded locking script of the output. When empty
	// the output is assumed to pay the Payment's own derived address and a
	// P2PKH script is derived at build time.
	Script string `json:"script,omitempty"`
}

// Output describes a transaction output to create. Exactly one of To,
// Script or Data must be set.
type Output struct {
	// To is a Bitcoin address to pay. A P2PKH locking script is derived
	// from it.
	To string `json:"to,omitempty"`

	// Script is a hex-encoded locking script used verbatim.
	Script string `json:"script,omitempty"`

	// Data builds an OP_FALSE OP_RETURN data output with one pushdata per
	// element. Data outputs usually carry zero satoshis.
	Data [][]byte `json:"-"`

	// Satoshis is the value locked by the output.
	Satoshis uint64 `json:"satoshis"`
}

// FeeRates is the satoshis-per-byte pricing table used to estimate the
// transaction fee, keyed by script-size class.
type FeeRates struct {
	// Standard is the rate applied to all non-data bytes.
	Standard float64 `json:"standard"`

	// Data is the rate applied to bytes of OP_RETURN data outputs.
	Data float64 `json:"data"`
}

// DefaultFeeRates is the fee pricing used when Options.Rates is zero.
var DefaultFeeRates = FeeRates{
	Standard: 0.5,
	Data:     0.5,
}

// Invoice is the funding invoice resource tracked by the Presto API.
type Invoice struct {
	// ID is the server-assigned invoice identifier.
	ID string `json:"id"`

	// Satoshis is the funding amount requested by the invoice.
	Satoshis uint64 `json:"satoshis"`

	// Script is the hex-encoded locking script funds are paid to.
	Script string `json:"script"`

	// Description is an optional human-readable invoice description.
	Description string `json:"description,omitempty"`

	// Status is the server-side invoice status.
	Status string `json:"status,omitempty"`
}
