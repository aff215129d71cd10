package paypresto

import (
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Options configures a new Payment.
type Options struct {
	// Key is the private key the payment signs with. Required. The key is
	// exclusively owned by the Payment and is never transmitted to the
	// Presto API or across the surface channel.
	Key *ec.PrivateKey

	// Inputs are UTXOs already held by the caller, counted towards the
	// funding requirement.
	Inputs []UTXO

	// Outputs are the outputs the transaction must create.
	Outputs []Output

	// Rates is the fee pricing table. Defaults to DefaultFeeRates when
	// nil; an explicit zero table is honored.
	Rates *FeeRates

	// ChangeAddress receives any surplus funding. Defaults to the address
	// derived from Key.
	ChangeAddress string

	// Description is attached to the created invoice.
	Description string

	// Debug enables diagnostic output. When no Logger is given a logrus
	// logger at debug level is installed.
	Debug bool

	// Logger receives diagnostic output. Optional.
	Logger Logger

	// InvoiceClient performs invoice create and load requests. Defaults
	// to an HTTPInvoiceClient against the production API.
	InvoiceClient InvoiceClient

	// TrustedOrigin is the single origin inbound surface messages are
	// accepted from. Defaults to DefaultTrustedOrigin.
	TrustedOrigin string
}

// Validate checks the options for construction errors.
func (o Options) Validate() error {
	if o.Key == nil {
		return ErrMissingKey
	}
	for _, out := range o.Outputs {
		if err := out.validate(); err != nil {
			return err
		}
	}
	return nil
}

// validate checks that exactly one locking condition is set.
func (o Output) validate() error {
	n := 0
	if o.To != "" {
		n++
	}
	if o.Script != "" {
		n++
	}
	if len(o.Data) > 0 {
		n++
	}
	if n != 1 {
		return ErrInvalidOutput
	}
	return nil
}

// KeyFromWIF parses a WIF-encoded private key.
func KeyFromWIF(wif string) (*ec.PrivateKey, error) {
	key, err := ec.PrivateKeyFromWif(wif)
	if err != nil {
		return nil, NewPaymentError(ErrCodeMissingKey, "invalid WIF key", ErrMissingKey)
	}
	return key, nil
}

// KeyFromHex parses a hex-encoded private key.
func KeyFromHex(h string) (*ec.PrivateKey, error) {
	key, err := ec.PrivateKeyFromHex(h)
	if err != nil {
		return nil, NewPaymentError(ErrCodeMissingKey, "invalid hex key", ErrMissingKey)
	}
	return key, nil
}
