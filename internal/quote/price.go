package quote

import "github.com/rewired-gh/volspike/internal/models"

// DisplayPrice picks a price to show for q: the latest trade, else the best bid,
// else the best ask, else the second bid. It is for display only and never
// feeds the volume test.
func DisplayPrice(q models.Quote) (float64, bool) {
	if q.LatestTradePrice != nil && *q.LatestTradePrice > 0 {
		return *q.LatestTradePrice, true
	}
	if p, ok := level(q.BestBids, 0); ok {
		return p, true
	}
	if p, ok := level(q.BestAsks, 0); ok {
		return p, true
	}
	if p, ok := level(q.BestBids, 1); ok {
		return p, true
	}
	return 0, false
}

func level(levels []float64, i int) (float64, bool) {
	if i >= len(levels) || levels[i] <= 0 {
		return 0, false
	}
	return levels[i], true
}
