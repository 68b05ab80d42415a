package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"simex/internal/book"
	"simex/internal/config"
	"simex/internal/logger"
	"simex/internal/oracle"
	"simex/internal/recorder"
	"simex/internal/trader"
)

// State of a session's lifecycle.
type State int32

const (
	Initializing State = iota
	Running
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// ErrNotRunnable is returned when Run is called on a session that already
// ran or failed to initialize.
var ErrNotRunnable = errors.New("session not runnable")

// Session is one market run: a book, an oracle, a trader population and a
// deterministic clock, all driven from a single seeded RNG. A Session is
// single-threaded; concurrency lives one level up, across sessions.
type Session struct {
	ID    string
	Seed  int64
	state State

	cfg *config.Config
	rng *rand.Rand

	book *book.Book
	orc  *oracle.Oracle

	buyers  []*trader.Trader
	sellers []*trader.Trader
	all     []*trader.Trader
	byID    map[string]*trader.Trader

	sched *scheduler
	rec   recorder.Recorder

	tick         int64
	nextOrderID  int64
	nextActor    int
	restingQuote map[string]int64 // trader id -> live order id
	lastCancel   bool             // most recent tape event was a cancel

	tape       []int64
	trades     []book.Trade
	demandBook []int64 // issued buy limits, unit-expanded
	supplyBook []int64 // issued sell limits, unit-expanded

	unknownCancels int64
	rejectedOrders int64
}

// New builds a session from an already-validated config. rec may be nil.
func New(cfg *config.Config, seed int64, rec recorder.Recorder) (*Session, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = recorder.Nop{}
	}
	s := &Session{
		ID:           uuid.NewString(),
		Seed:         seed,
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(seed)),
		book:         book.New(cfg.Session.PriceMin, cfg.Session.PriceMax),
		byID:         make(map[string]*trader.Trader),
		rec:          rec,
		restingQuote: make(map[string]int64),
	}
	if err := s.populate(); err != nil {
		return nil, err
	}
	var subscribers []string
	for _, t := range s.all {
		if t.Subscribed {
			subscribers = append(subscribers, t.ID)
		}
	}
	s.orc = oracle.New(cfg.Oracle, cfg.Session.PriceMin, cfg.Session.PriceMax, subscribers)
	s.sched = newScheduler(cfg.Schedule, cfg.Session.PriceMin, cfg.Session.PriceMax,
		len(s.buyers), len(s.sellers))
	return s, nil
}

func (s *Session) populate() error {
	build := func(cohorts []config.CohortConfig, side book.Side, prefix string) ([]*trader.Trader, error) {
		var out []*trader.Trader
		for _, cohort := range cohorts {
			for i := 0; i < cohort.Count; i++ {
				id := fmt.Sprintf("%s%02d", prefix, len(out))
				t, err := trader.New(id, cohort.Strategy, side, cohort.Params,
					s.cfg.Session.PriceMin, s.cfg.Session.PriceMax, cohort.Oracle, s.rng)
				if err != nil {
					return nil, err
				}
				out = append(out, t)
			}
		}
		return out, nil
	}
	var err error
	if s.buyers, err = build(s.cfg.Traders.Buyers, book.Buy, "B"); err != nil {
		return err
	}
	if s.sellers, err = build(s.cfg.Traders.Sellers, book.Sell, "S"); err != nil {
		return err
	}
	s.all = append(append([]*trader.Trader{}, s.buyers...), s.sellers...)
	for _, t := range s.all {
		s.byID[t.ID] = t
	}
	return nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Traders returns the population in activation order.
func (s *Session) Traders() []*trader.Trader {
	return s.all
}

// Run executes the whole session and returns its summary. It can run once.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	if s.state != Initializing {
		return nil, fmt.Errorf("%w: state %s", ErrNotRunnable, s.state)
	}
	s.state = Running
	logger.Infof("session %s starting: seed=%d traders=%d ticks=%d",
		s.ID, s.Seed, len(s.all), s.cfg.Session.DurationTicks)

	for s.tick = 1; s.tick <= s.cfg.Session.DurationTicks; s.tick++ {
		if err := ctx.Err(); err != nil {
			s.state = Closed
			return nil, err
		}
		if err := s.step(); err != nil {
			s.state = Closed
			return nil, err
		}
	}

	s.state = Closing
	summary := s.summarize()
	if err := s.rec.Flush(); err != nil {
		return nil, fmt.Errorf("flushing recorder: %w", err)
	}
	s.state = Closed
	logger.Infof("session %s closed: trades=%d efficiency=%s",
		s.ID, summary.Trades, summary.Efficiency.StringFixed(4))
	return summary, nil
}

// step runs one tick: customer orders, oracle, one (or every) trader's
// quote, trade bookkeeping, responses, then records.
func (s *Session) step() error {
	s.issueCustomerOrders()
	s.orc.Advance(s.rng)

	var tickTrades []book.Trade
	for _, actor := range s.pickActors() {
		tickTrades = append(tickTrades, s.act(actor)...)
	}

	view := s.view()
	var last *book.Trade
	if n := len(tickTrades); n > 0 {
		last = &tickTrades[n-1]
	}
	for _, t := range s.all {
		t.Respond(view, last, s.rng)
	}

	return s.record(tickTrades)
}

func (s *Session) issueCustomerOrders() {
	for _, p := range s.sched.due(s.tick, s.rng) {
		pool := s.buyers
		if p.side == book.Sell {
			pool = s.sellers
		}
		t := pool[p.traderIdx]
		s.cancelQuote(t.ID)
		t.Assign(trader.Assignment{Limit: p.limit, Qty: p.qty, Tick: s.tick})
		for i := int64(0); i < p.qty; i++ {
			if p.side == book.Buy {
				s.demandBook = append(s.demandBook, p.limit)
			} else {
				s.supplyBook = append(s.supplyBook, p.limit)
			}
		}
	}
}

func (s *Session) pickActors() []*trader.Trader {
	if s.cfg.Session.Activation == "round_robin" {
		t := s.all[s.nextActor]
		s.nextActor = (s.nextActor + 1) % len(s.all)
		return []*trader.Trader{t}
	}
	return []*trader.Trader{s.all[s.rng.Int63n(int64(len(s.all)))]}
}

// act lets one trader quote, replacing any quote it already has resting.
func (s *Session) act(t *trader.Trader) []book.Trade {
	var sig *oracle.Signal
	if t.Subscribed {
		if obs, ok := s.orc.Observe(t.ID, s.tick, s.rng); ok {
			sig = &obs
		}
	}
	price, _, ok := t.Quote(s.view(), sig, s.rng)
	if !ok {
		return nil
	}
	s.cancelQuote(t.ID)

	s.nextOrderID++
	order := &book.Order{
		ID:       s.nextOrderID,
		TraderID: t.ID,
		Side:     t.Side,
		Price:    price,
		Qty:      t.QtyWanted(),
		Tick:     s.tick,
	}
	trades, err := s.book.Submit(order)
	if err != nil {
		// counted, never fatal mid-run
		s.rejectedOrders++
		logger.Warnf("session %s: order from %s rejected: %v", s.ID, t.ID, err)
		return nil
	}
	if s.book.Resting(order.ID) {
		s.restingQuote[t.ID] = order.ID
	}

	for _, tr := range trades {
		s.settle(tr)
	}
	return trades
}

func (s *Session) settle(tr book.Trade) {
	s.byID[tr.BuyTraderID].OnTrade(tr.Price, tr.Qty)
	s.byID[tr.SellTraderID].OnTrade(tr.Price, tr.Qty)
	for _, id := range []string{tr.BuyTraderID, tr.SellTraderID} {
		if oid, ok := s.restingQuote[id]; ok && !s.book.Resting(oid) {
			delete(s.restingQuote, id)
		}
	}
	s.tape = append(s.tape, tr.Price)
	s.trades = append(s.trades, tr)
	s.lastCancel = false
}

// cancelQuote withdraws a trader's resting quote, if any. Unknown ids are
// counted no-ops.
func (s *Session) cancelQuote(traderID string) {
	oid, ok := s.restingQuote[traderID]
	if !ok {
		return
	}
	delete(s.restingQuote, traderID)
	if !s.book.Cancel(oid) {
		s.unknownCancels++
		return
	}
	s.lastCancel = true
}

func (s *Session) view() trader.View {
	v := trader.View{
		Tick:            s.tick,
		Duration:        s.cfg.Session.DurationTicks,
		PriceMin:        s.cfg.Session.PriceMin,
		PriceMax:        s.cfg.Session.PriceMax,
		LastEventCancel: s.lastCancel,
		Tape:            s.tape,
	}
	bids, asks := s.book.Depth()
	if len(bids) > 0 {
		v.HasBid, v.BestBid, v.BidQty = true, bids[0].Price, bids[0].Qty
	}
	if len(asks) > 0 {
		v.HasAsk, v.BestAsk, v.AskQty = true, asks[0].Price, asks[0].Qty
	}
	if n := len(s.tape); n > 0 {
		v.HasTrade, v.LastTrade = true, s.tape[n-1]
	}
	return v
}

func (s *Session) record(trades []book.Trade) error {
	for _, tr := range trades {
		err := s.rec.RecordTrade(recorder.TradeRecord{
			RunID:        s.ID,
			Tick:         tr.Tick,
			Price:        tr.Price,
			Qty:          tr.Qty,
			BuyTraderID:  tr.BuyTraderID,
			SellTraderID: tr.SellTraderID,
		})
		if err != nil {
			return fmt.Errorf("recording trade: %w", err)
		}
	}
	every := s.cfg.Session.SnapshotEvery
	if every <= 0 || s.tick%every != 0 {
		return nil
	}
	snap := recorder.SnapshotRecord{RunID: s.ID, Tick: s.tick, Fundamental: s.orc.Value()}
	bids, asks := s.book.Depth()
	if len(bids) > 0 {
		snap.HasBid, snap.BestBid = true, bids[0].Price
	}
	if len(asks) > 0 {
		snap.HasAsk, snap.BestAsk = true, asks[0].Price
	}
	for _, l := range bids {
		snap.BidDepth += l.Qty
	}
	for _, l := range asks {
		snap.AskDepth += l.Qty
	}
	if err := s.rec.RecordSnapshot(snap); err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}
	return nil
}
