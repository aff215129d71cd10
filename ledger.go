package paypresto

// ledger tracks input accumulation during the funding phase. Inputs are
// append-only and deliberately not deduplicated; the reporting side is
// trusted to report each UTXO once. Funding sufficiency is a derived
// predicate computed by the owning Payment, never stored here.
type ledger struct {
	inputs []UTXO
}

func (l *ledger) add(u UTXO) {
	l.inputs = append(l.inputs, u)
}

func (l *ledger) total() uint64 {
	var sum uint64
	for _, u := range l.inputs {
		sum += u.Satoshis
	}
	return sum
}

func (l *ledger) count() int {
	return len(l.inputs)
}

func (l *ledger) all() []UTXO {
	return l.inputs
}
