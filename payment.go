package paypresto

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	script "github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"
	"github.com/davecgh/go-spew/spew"

	"github.com/mmroot/paypresto/channel"
)

// Payment orchestrates a single funding flow: it owns the funding ledger
// and the private key, negotiates the invoice, consumes asynchronous
// funding and result notifications from the mounted surface, and emits
// lifecycle events to subscribers.
//
// All state is mutated only by the Payment itself, in response to its own
// API calls or inbound surface messages. Inbound messages are processed in
// delivery order, one at a time.
type Payment struct {
	mu sync.Mutex

	key           *ec.PrivateKey
	inputs        ledger
	outputs       []Output
	resolved      []resolvedOutput
	rates         FeeRates
	changeAddress string
	description   string
	trustedOrigin string

	invoice *Invoice
	tx      *transaction.Transaction
	ch      *channel.Channel
	unsub   func()
	height  int

	// fundedSignaled records that the funded crossing has been emitted.
	// Redundant input additions after the crossing never re-emit.
	fundedSignaled bool

	// terminal records that a tx.success, tx.failure or tx.error message
	// resolved the payment; later terminal messages are ignored.
	terminal bool

	events *Emitter
	client InvoiceClient
	log    Logger
}

// Surface message payloads.
type txPushPayload struct {
	RawTx string `json:"rawtx"`
}

type configurePayload struct {
	InvoiceID   string `json:"invoiceId"`
	Description string `json:"description,omitempty"`
}

type invoiceStatusPayload struct {
	UTXOs []UTXO `json:"utxos"`
}

type txSuccessPayload struct {
	TxID string `json:"txid"`
}

type txFailurePayload struct {
	ResultDescription string `json:"resultDescription"`
	Error             string `json:"error"`
}

type resizePayload struct {
	Height int `json:"height"`
}

// NewPayment constructs a Payment without requesting an invoice. Most
// callers should use Create or Load instead.
func NewPayment(opts Options) (*Payment, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	resolved, err := resolveOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}

	rates := DefaultFeeRates
	if opts.Rates != nil {
		rates = *opts.Rates
	}

	client := opts.InvoiceClient
	if client == nil {
		client = NewHTTPInvoiceClient()
	}

	origin := opts.TrustedOrigin
	if origin == "" {
		origin = DefaultTrustedOrigin
	}

	var log Logger = nopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	} else if opts.Debug {
		log = newDebugLogger()
	}

	p := &Payment{
		key:           opts.Key,
		inputs:        ledger{inputs: append([]UTXO(nil), opts.Inputs...)},
		outputs:       append([]Output(nil), opts.Outputs...),
		resolved:      resolved,
		rates:         rates,
		description:   opts.Description,
		trustedOrigin: origin,
		events:        NewEmitter(),
		client:        client,
		log:           log,
	}

	p.changeAddress = opts.ChangeAddress
	if p.changeAddress == "" {
		addr, err := p.Address()
		if err != nil {
			return nil, err
		}
		p.changeAddress = addr
	}

	// A payment constructed already funded never crosses to zero, so the
	// funded event never fires for it.
	p.fundedSignaled = p.amountDueLocked() == 0

	return p, nil
}

// On registers a persistent listener for the given payment event.
func (p *Payment) On(t EventType, cb Callback) {
	p.events.On(t, cb)
}

// Once registers a listener removed after its first invocation.
func (p *Payment) Once(t EventType, cb Callback) {
	p.events.Once(t, cb)
}

// Address returns the address derived from the payment's key. It is
// recomputed on every call, never cached.
func (p *Payment) Address() (string, error) {
	addr, err := script.NewAddressFromPublicKey(p.key.PubKey(), true)
	if err != nil {
		return "", NewPaymentError(ErrCodeBuildFailed, "deriving address failed", err)
	}
	return addr.AddressString, nil
}

// PublicKey returns the public key derived from the payment's key.
func (p *Payment) PublicKey() *ec.PublicKey {
	return p.key.PubKey()
}

// outputSum sums the satoshi values of all outputs.
func (p *Payment) outputSum() uint64 {
	var sum uint64
	for _, o := range p.resolved {
		sum += o.satoshis
	}
	return sum
}

// amountLocked computes the required amount: outputs plus estimated fee.
// Callers must hold p.mu.
func (p *Payment) amountLocked() uint64 {
	return p.outputSum() + estimateFee(p.inputs.count(), p.resolved, p.rates)
}

// amountDueLocked computes the outstanding amount, never negative.
// Callers must hold p.mu.
func (p *Payment) amountDueLocked() uint64 {
	required := p.amountLocked()
	total := p.inputs.total()
	if total >= required {
		return 0
	}
	return required - total
}

// Amount returns the total amount the transaction requires: the sum of all
// output values plus the estimated fee. It is recomputed on every call.
func (p *Payment) Amount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.amountLocked()
}

// AmountDue returns the amount still required to fully fund the
// transaction. Never negative; zero means the payment is funded.
func (p *Payment) AmountDue() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.amountDueLocked()
}

// Invoice returns the invoice resource, or nil before CreateInvoice or
// LoadInvoice resolved.
func (p *Payment) Invoice() *Invoice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invoice
}

// Height returns the presentation height last reported by the surface.
func (p *Payment) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

// CreateInvoice requests a new invoice for the currently outstanding
// amount, but never less than DustLimit+1 satoshis so the requested amount
// always exceeds the network's minimum spendable value. On success the
// invoice is stored (last write wins) and the invoice event fires; on
// failure the error event fires and the request is not retried.
func (p *Payment) CreateInvoice(ctx context.Context) (*Invoice, error) {
	p.mu.Lock()
	satoshis := p.amountDueLocked()
	p.mu.Unlock()
	if satoshis < DustLimit+1 {
		satoshis = DustLimit + 1
	}

	ownScript, err := p.ownLockingScript()
	if err != nil {
		return nil, err
	}

	req := InvoiceRequest{
		Satoshis:    satoshis,
		Script:      hex.EncodeToString(*ownScript),
		Description: p.description,
	}
	p.log.Debugf("paypresto: creating invoice for %d satoshis", satoshis)

	inv, err := p.client.CreateInvoice(ctx, req)
	if err != nil {
		perr := NewPaymentError(ErrCodeNetworkError, "invoice creation failed", err)
		p.events.Emit(Event{Type: EventError, Err: perr})
		return nil, perr
	}

	p.setInvoice(inv)
	return inv, nil
}

// LoadInvoice fetches an existing invoice by identifier. CreateInvoice and
// LoadInvoice are mutually exclusive entry points; calling both is a caller
// error and the last resolved invoice wins.
func (p *Payment) LoadInvoice(ctx context.Context, id string) (*Invoice, error) {
	p.log.Debugf("paypresto: loading invoice %s", id)

	inv, err := p.client.GetInvoice(ctx, id)
	if err != nil {
		perr := NewPaymentError(ErrCodeNetworkError, "invoice load failed", err).
			WithDetails("id", id)
		p.events.Emit(Event{Type: EventError, Err: perr})
		return nil, perr
	}

	p.setInvoice(inv)
	return inv, nil
}

func (p *Payment) setInvoice(inv *Invoice) {
	p.mu.Lock()
	p.invoice = inv
	p.mu.Unlock()
	p.events.Emit(Event{Type: EventInvoice, Invoice: inv})
}

// AddInput appends a UTXO to the funding ledger and re-evaluates the
// amount due. Additions are append-only and not deduplicated. When the due
// amount crosses from non-zero to zero the funded event fires, exactly once
// for the crossing.
func (p *Payment) AddInput(u UTXO) {
	p.mu.Lock()
	p.inputs.add(u)
	crossed := p.amountDueLocked() == 0 && !p.fundedSignaled
	if crossed {
		p.fundedSignaled = true
	}
	p.mu.Unlock()

	p.log.Debugf("paypresto: input %s:%d for %d satoshis", u.TxID, u.Vout, u.Satoshis)
	if crossed {
		p.events.Emit(Event{Type: EventFunded})
	}
}

// Inputs returns a copy of the inputs attached so far.
func (p *Payment) Inputs() []UTXO {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]UTXO(nil), p.inputs.all()...)
}

// txStale reports whether the built transaction is behind the logical
// input and output lists. Callers must hold p.mu.
func (p *Payment) txStale() bool {
	return p.tx == nil ||
		len(p.tx.Inputs) < p.inputs.count() ||
		len(p.tx.Outputs) < len(p.resolved)
}

// Build assembles the underlying transaction from the current inputs and
// outputs, replacing any previously built transaction.
func (p *Payment) Build() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, err := p.buildTx()
	if err != nil {
		return err
	}
	p.tx = tx
	return nil
}

// SignTx signs every input of the underlying transaction, building it
// first if it is behind the logical lists. Re-signing semantics are
// delegated to the transaction library.
func (p *Payment) SignTx() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signLocked()
}

func (p *Payment) signLocked() error {
	if p.txStale() {
		tx, err := p.buildTx()
		if err != nil {
			return err
		}
		p.tx = tx
	}
	if err := p.tx.Sign(); err != nil {
		return NewPaymentError(ErrCodeBuildFailed, "signing transaction failed", err)
	}
	return nil
}

// SignTxIn signs a single input of the underlying transaction. The caller
// is responsible for calling Build first; there is no state-machine gate.
func (p *Payment) SignTxIn(index uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tx == nil {
		return NewPaymentError(ErrCodeBuildFailed, "transaction not built", nil)
	}
	if int(index) >= len(p.tx.Inputs) {
		return NewPaymentError(ErrCodeBuildFailed, "input index out of range", nil).
			WithDetails("index", index)
	}

	unlocker, err := p2pkh.Unlock(p.key, nil)
	if err != nil {
		return NewPaymentError(ErrCodeBuildFailed, "deriving unlocker failed", err)
	}
	s, err := unlocker.Sign(p.tx, index)
	if err != nil {
		return NewPaymentError(ErrCodeBuildFailed, "signing input failed", err).
			WithDetails("index", index)
	}
	p.tx.Inputs[index].UnlockingScript = s
	return nil
}

// RawTx returns the hex serialization of the underlying transaction.
func (p *Payment) RawTx() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tx == nil {
		return "", NewPaymentError(ErrCodeBuildFailed, "transaction not built", nil)
	}
	return p.tx.Hex(), nil
}

// PushTx hands the signed transaction to the mounted surface for
// broadcast. The payment must be fully funded; calling PushTx with a
// non-zero amount due is a fatal precondition failure and nothing is sent.
// If the built transaction is behind the logical lists it is built and
// signed first. Broadcast confirmation arrives asynchronously as a
// tx.success, tx.failure or tx.error message; no timeout is enforced here,
// callers compensating for an unresponsive surface must do so externally.
func (p *Payment) PushTx() error {
	p.mu.Lock()
	if due := p.amountDueLocked(); due > 0 {
		p.mu.Unlock()
		return NewPaymentError(ErrCodeInsufficientFunds,
			fmt.Sprintf("amount due is %d satoshis", due), ErrInsufficientFunds)
	}
	ch := p.ch
	if ch == nil {
		p.mu.Unlock()
		return ErrNoChannel
	}
	if err := p.signLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	raw := p.tx.Hex()
	p.mu.Unlock()

	p.log.Infof("paypresto: pushing transaction (%d bytes)", len(raw)/2)
	return ch.Send(channel.EventTxPush, txPushPayload{RawTx: raw})
}

// Mount attaches the payment to a surface produced by the mount point.
// Once the surface is ready the payment subscribes its inbound listener and
// sends the handshake and configure messages, in that order. On failure the
// error event fires and the sequence is never sent.
func (p *Payment) Mount(ctx context.Context, mp channel.MountPoint) error {
	p.mu.Lock()
	inv := p.invoice
	p.mu.Unlock()
	if inv == nil {
		return ErrNoInvoice
	}

	surface, err := mp.Mount(ctx)
	if err != nil {
		perr := NewPaymentError(ErrCodeMountFailed, "mounting payment surface failed",
			fmt.Errorf("%w: %v", ErrMountFailed, err))
		p.events.Emit(Event{Type: EventError, Err: perr})
		return perr
	}

	ch := channel.New(p.trustedOrigin, surface)
	cancel := ch.Subscribe(p.handleMessage)

	p.mu.Lock()
	p.ch = ch
	p.unsub = cancel
	p.mu.Unlock()

	if err := ch.Send(channel.EventHandshake, nil); err != nil {
		return err
	}
	return ch.Send(channel.EventConfigure, configurePayload{
		InvoiceID:   inv.ID,
		Description: p.description,
	})
}

// Unmount releases the channel subscription and closes the channel.
func (p *Payment) Unmount() {
	p.mu.Lock()
	unsub := p.unsub
	ch := p.ch
	p.unsub = nil
	p.ch = nil
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if ch != nil {
		ch.Close()
	}
}

// Channel returns the active cross-boundary channel, or nil before Mount.
// Hosts route inbound surface messages into it via Channel().Deliver.
func (p *Payment) Channel() *channel.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch
}

// handleMessage consumes one inbound surface message. Messages arriving
// after a terminal result are ignored, as are unknown events.
func (p *Payment) handleMessage(msg channel.Message) {
	p.log.Debugf("paypresto: received %s %s", msg.Event, spew.Sdump(msg.Payload))

	switch msg.Event {
	case channel.EventInvoiceStatus:
		var payload invoiceStatusPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			p.log.Errorf("paypresto: malformed invoice.status payload: %v", err)
			return
		}
		for _, u := range payload.UTXOs {
			p.AddInput(u)
		}

	case channel.EventTxSuccess:
		var payload txSuccessPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			p.log.Errorf("paypresto: malformed tx.success payload: %v", err)
			return
		}
		if !p.markTerminal() {
			return
		}
		p.events.Emit(Event{Type: EventSuccess, TxID: payload.TxID})

	case channel.EventTxFailure, channel.EventTxError:
		var payload txFailurePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			p.log.Errorf("paypresto: malformed %s payload: %v", msg.Event, err)
			return
		}
		if !p.markTerminal() {
			return
		}
		reason := payload.ResultDescription
		if reason == "" {
			reason = payload.Error
		}
		perr := NewPaymentError(ErrCodeRemoteFailure, reason, ErrRemoteFailure)
		p.events.Emit(Event{Type: EventError, Err: perr})

	case channel.EventResize:
		var payload resizePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		p.mu.Lock()
		p.height = payload.Height
		p.mu.Unlock()

	default:
		p.log.Debugf("paypresto: ignoring unknown event %q", msg.Event)
	}
}

// markTerminal flips the terminal flag, reporting whether this message is
// the first terminal result.
func (p *Payment) markTerminal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal {
		return false
	}
	p.terminal = true
	return true
}
