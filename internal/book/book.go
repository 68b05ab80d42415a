package book

import (
	"container/heap"
	"fmt"
	"sort"
)

// Book is a single-instrument limit-order book with price-time priority.
// Executions happen at the resting order's price. Not safe for concurrent
// use; sessions are single-threaded by construction.
type Book struct {
	priceMin int64
	priceMax int64

	bids *bookSide
	asks *bookSide

	orders      map[int64]*Order // resting orders by id
	seen        map[int64]bool   // every id ever accepted
	outstanding int64
}

// New returns an empty book accepting prices in [priceMin, priceMax].
func New(priceMin, priceMax int64) *Book {
	return &Book{
		priceMin: priceMin,
		priceMax: priceMax,
		bids:     newBookSide(true),
		asks:     newBookSide(false),
		orders:   make(map[int64]*Order),
		seen:     make(map[int64]bool),
	}
}

// Submit validates o, matches it against the opposing side and rests any
// remainder. Returned trades are in execution order, priced at the resting
// quote. o is retained by the book when a remainder rests; callers must not
// mutate it afterwards.
func (b *Book) Submit(o *Order) ([]Trade, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if o.Side != Buy && o.Side != Sell {
		return nil, fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, o.Side)
	}
	if o.Qty <= 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidOrder, o.Qty)
	}
	if o.Price < b.priceMin || o.Price > b.priceMax {
		return nil, fmt.Errorf("%w: price %d outside [%d,%d]", ErrInvalidOrder, o.Price, b.priceMin, b.priceMax)
	}
	if b.seen[o.ID] {
		return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidOrder, o.ID)
	}
	b.seen[o.ID] = true

	var trades []Trade
	opposing := b.asks
	if o.Side == Sell {
		opposing = b.bids
	}
	for o.Qty > 0 {
		rest := opposing.peek()
		if rest == nil || !crosses(o, rest) {
			break
		}
		qty := min64(o.Qty, rest.Qty)
		trades = append(trades, b.execute(o, rest, qty))
		o.Qty -= qty
		rest.Qty -= qty
		b.outstanding -= qty
		if rest.Qty == 0 {
			opposing.popFront()
			delete(b.orders, rest.ID)
		}
	}
	if o.Qty > 0 {
		own := b.bids
		if o.Side == Sell {
			own = b.asks
		}
		own.push(o)
		b.orders[o.ID] = o
		b.outstanding += o.Qty
	}
	return trades, nil
}

// Cancel removes the resting order with the given id. It returns false when
// no such order rests, which callers treat as a reported no-op.
func (b *Book) Cancel(id int64) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}
	side.remove(o)
	delete(b.orders, id)
	b.outstanding -= o.Qty
	return true
}

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (int64, bool) {
	if o := b.bids.peek(); o != nil {
		return o.Price, true
	}
	return 0, false
}

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (int64, bool) {
	if o := b.asks.peek(); o != nil {
		return o.Price, true
	}
	return 0, false
}

// Depth returns aggregate resting quantity per price level, bids descending
// and asks ascending.
func (b *Book) Depth() (bids, asks []Level) {
	return b.bids.levelView(), b.asks.levelView()
}

// Outstanding is the total resting quantity across both sides.
func (b *Book) Outstanding() int64 {
	return b.outstanding
}

// Resting reports whether the order with the given id still rests.
func (b *Book) Resting(id int64) bool {
	_, ok := b.orders[id]
	return ok
}

func (b *Book) execute(incoming, resting *Order, qty int64) Trade {
	t := Trade{Price: resting.Price, Qty: qty, Tick: incoming.Tick}
	if incoming.Side == Buy {
		t.BuyOrderID, t.BuyTraderID = incoming.ID, incoming.TraderID
		t.SellOrderID, t.SellTraderID = resting.ID, resting.TraderID
	} else {
		t.BuyOrderID, t.BuyTraderID = resting.ID, resting.TraderID
		t.SellOrderID, t.SellTraderID = incoming.ID, incoming.TraderID
	}
	return t
}

func crosses(incoming, resting *Order) bool {
	if incoming.Side == Buy {
		return incoming.Price >= resting.Price
	}
	return incoming.Price <= resting.Price
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// bookSide holds one side's levels: a price heap for best lookup plus a FIFO
// queue per level. Emptied prices are dropped from the heap lazily.
type bookSide struct {
	max    bool
	prices priceHeap
	queues map[int64][]*Order
}

func newBookSide(max bool) *bookSide {
	return &bookSide{max: max, prices: priceHeap{max: max}, queues: make(map[int64][]*Order)}
}

func (s *bookSide) push(o *Order) {
	q, ok := s.queues[o.Price]
	if !ok {
		heap.Push(&s.prices, o.Price)
	}
	s.queues[o.Price] = append(q, o)
}

// peek returns the front order of the best level, or nil when empty.
func (s *bookSide) peek() *Order {
	for len(s.prices.ps) > 0 {
		best := s.prices.ps[0]
		q := s.queues[best]
		if len(q) > 0 {
			return q[0]
		}
		delete(s.queues, best)
		heap.Pop(&s.prices)
	}
	return nil
}

func (s *bookSide) popFront() {
	o := s.peek()
	if o == nil {
		return
	}
	q := s.queues[o.Price][1:]
	if len(q) == 0 {
		delete(s.queues, o.Price)
		heap.Pop(&s.prices)
	} else {
		s.queues[o.Price] = q
	}
}

func (s *bookSide) remove(o *Order) {
	q := s.queues[o.Price]
	for i, r := range q {
		if r.ID == o.ID {
			q = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(s.queues, o.Price)
	} else {
		s.queues[o.Price] = q
	}
}

func (s *bookSide) levelView() []Level {
	levels := make([]Level, 0, len(s.queues))
	for price, q := range s.queues {
		var qty int64
		for _, o := range q {
			qty += o.Qty
		}
		if qty > 0 {
			levels = append(levels, Level{Price: price, Qty: qty})
		}
	}
	sort.Slice(levels, func(i, j int) bool {
		if s.max {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	return levels
}

type priceHeap struct {
	ps  []int64
	max bool
}

func (h priceHeap) Len() int { return len(h.ps) }

func (h priceHeap) Less(i, j int) bool {
	if h.max {
		return h.ps[i] > h.ps[j]
	}
	return h.ps[i] < h.ps[j]
}

func (h priceHeap) Swap(i, j int) { h.ps[i], h.ps[j] = h.ps[j], h.ps[i] }

func (h *priceHeap) Push(x any) { h.ps = append(h.ps, x.(int64)) }

func (h *priceHeap) Pop() any {
	n := len(h.ps)
	p := h.ps[n-1]
	h.ps = h.ps[:n-1]
	return p
}
