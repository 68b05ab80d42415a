package book

import "errors"

// ErrInvalidOrder marks a rejected submission: bad side, non-positive price
// or quantity, out-of-band price, or a reused order id.
var ErrInvalidOrder = errors.New("invalid order")

// Side of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "bid"
	}
	return "ask"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is a limit order. ID must be unique across the life of a book;
// Tick records the scheduler time of submission and breaks no ties itself,
// arrival order within a price level does.
type Order struct {
	ID       int64
	TraderID string
	Side     Side
	Price    int64
	Qty      int64
	Tick     int64
}

// Trade is one execution. Price is the resting order's price.
type Trade struct {
	Price        int64
	Qty          int64
	BuyOrderID   int64
	SellOrderID  int64
	BuyTraderID  string
	SellTraderID string
	Tick         int64
}

// Level is one price level of the depth view.
type Level struct {
	Price int64
	Qty   int64
}
