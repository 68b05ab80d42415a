package recorder

// Sink adapts the run and tape stores into the session-facing Recorder:
// snapshots write through, trades buffer until Flush so a session's tape
// lands in batched transactions.
type Sink struct {
	store *Store
	tape  *TapeStore

	pending   []TradeRecord
	batchSize int
}

// NewSink builds a Recorder over the two stores.
func NewSink(store *Store, tape *TapeStore) *Sink {
	return &Sink{store: store, tape: tape, batchSize: 512}
}

func (s *Sink) RecordTrade(r TradeRecord) error {
	s.pending = append(s.pending, r)
	if len(s.pending) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

func (s *Sink) RecordSnapshot(r SnapshotRecord) error {
	return s.store.saveSnapshot(r)
}

func (s *Sink) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.tape.AppendTrades(s.pending); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	return nil
}

// Close flushes; the underlying stores outlive the sink and are closed by
// their owner.
func (s *Sink) Close() error {
	return s.Flush()
}
