package trader

import "simex/internal/book"

// bookWatch remembers the previous best of each side so adaptive
// strategies can classify what moved the book between responds.
type bookWatch struct {
	hasPrevBid bool
	prevBidP   int64
	prevBidQ   int64
	hasPrevAsk bool
	prevAskP   int64
	prevAskQ   int64
}

func (w *bookWatch) bidEvents(v View, trade *book.Trade) (improved, hit bool) {
	switch {
	case v.HasBid && !w.hasPrevBid:
		improved = true
	case v.HasBid:
		if w.prevBidP < v.BestBid {
			improved = true
		} else if trade != nil && (w.prevBidP > v.BestBid || (w.prevBidP == v.BestBid && w.prevBidQ > v.BidQty)) {
			hit = true
		}
	case w.hasPrevBid:
		// bid side emptied: cancelled or hit?
		hit = !v.LastEventCancel
	}
	return improved, hit
}

func (w *bookWatch) askEvents(v View, trade *book.Trade) (improved, lifted bool) {
	switch {
	case v.HasAsk && !w.hasPrevAsk:
		improved = true
	case v.HasAsk:
		if w.prevAskP > v.BestAsk {
			improved = true
		} else if trade != nil && (w.prevAskP < v.BestAsk || (w.prevAskP == v.BestAsk && w.prevAskQ > v.AskQty)) {
			lifted = true
		}
	case w.hasPrevAsk:
		lifted = !v.LastEventCancel
	}
	return improved, lifted
}

// observe refreshes the remembered bests; call it once per respond, after
// the event classification.
func (w *bookWatch) observe(v View) {
	w.hasPrevBid, w.prevBidP, w.prevBidQ = v.HasBid, v.BestBid, v.BidQty
	w.hasPrevAsk, w.prevAskP, w.prevAskQ = v.HasAsk, v.BestAsk, v.AskQty
}
