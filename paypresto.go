// Package paypresto coordinates a Bitcoin SV payment: it assembles an
// unsigned transaction from caller-supplied inputs and outputs, negotiates a
// funding invoice with the Presto API, tracks funding reported by an
// embedded payment surface, signs the transaction locally with the held
// private key, and hands the signed raw transaction back to the surface for
// broadcast.
//
// The library is embeddable and event-driven. Construct a Payment with
// Create or Load, subscribe to its events, mount a payment surface, and
// call PushTx once the funded event fires:
//
//	payment, err := paypresto.Create(ctx, paypresto.Options{
//		Key:     key,
//		Outputs: []paypresto.Output{{To: "1Bq5vPDeF22oWvnZW6KF9rUfnU7G7ZSTsF", Satoshis: 50000}},
//	})
//	if err != nil {
//		// ...
//	}
//	payment.On(paypresto.EventFunded, func(paypresto.Event) {
//		_ = payment.PushTx()
//	})
//	if err := payment.Mount(ctx, mountPoint); err != nil {
//		// ...
//	}
//
// The payment never broadcasts the transaction itself; broadcast is
// delegated to the mounted surface, which reports the result back
// asynchronously as a success or error event.
package paypresto

import "context"

// DefaultTrustedOrigin is the origin inbound surface messages are accepted
// from when Options.TrustedOrigin is empty.
const DefaultTrustedOrigin = "https://www.paypresto.co"

// Create constructs a Payment and immediately requests invoice creation for
// the outstanding amount. A missing or invalid key is a fatal construction
// error; an invoice request failure is surfaced both as the returned error
// and an error event.
func Create(ctx context.Context, opts Options) (*Payment, error) {
	p, err := NewPayment(opts)
	if err != nil {
		return nil, err
	}
	if _, err := p.CreateInvoice(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Load constructs a Payment and immediately fetches an existing invoice by
// identifier.
func Load(ctx context.Context, id string, opts Options) (*Payment, error) {
	p, err := NewPayment(opts)
	if err != nil {
		return nil, err
	}
	if _, err := p.LoadInvoice(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}
