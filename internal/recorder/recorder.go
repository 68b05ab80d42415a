package recorder

// TradeRecord is one execution as persisted.
type TradeRecord struct {
	RunID        string
	Tick         int64
	Price        int64
	Qty          int64
	BuyTraderID  string
	SellTraderID string
}

// SnapshotRecord is a periodic top-of-book snapshot alongside the
// fundamental value at the same tick.
type SnapshotRecord struct {
	RunID       string
	Tick        int64
	BestBid     int64
	HasBid      bool
	BestAsk     int64
	HasAsk      bool
	BidDepth    int64
	AskDepth    int64
	Fundamental int64
}

// Recorder receives the session's output stream. Records arrive in strict
// tick order, each exactly once; implementations may buffer until Flush.
type Recorder interface {
	RecordTrade(TradeRecord) error
	RecordSnapshot(SnapshotRecord) error
	Flush() error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error       { return nil }
func (Nop) RecordSnapshot(SnapshotRecord) error { return nil }
func (Nop) Flush() error                        { return nil }
func (Nop) Close() error                        { return nil }
