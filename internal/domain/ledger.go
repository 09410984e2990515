package domain

// BidLedger is the append-only bid history of one auction. Order is
// acceptance order. The only mutation allowed on an existing entry is
// clearing its IsWinning flag when a newer bid takes over.
type BidLedger []Bid

// Append records bid as the new winning bid. The new entry is written
// before the previous winner's flag is cleared, so the ledger never has
// zero winning bids once the first bid is in.
func (l *BidLedger) Append(bid Bid) {
	prev := l.winningIndex()

	bid.IsWinning = true
	*l = append(*l, bid)

	if prev >= 0 {
		(*l)[prev].IsWinning = false
	}
}

// Winning returns the current winning bid, if any.
func (l BidLedger) Winning() (Bid, bool) {
	if i := l.winningIndex(); i >= 0 {
		return l[i], true
	}
	return Bid{}, false
}

// Last returns the most recently accepted bid.
func (l BidLedger) Last() (Bid, bool) {
	if len(l) == 0 {
		return Bid{}, false
	}
	return l[len(l)-1], true
}

func (l BidLedger) WinningCount() int {
	n := 0
	for _, b := range l {
		if b.IsWinning {
			n++
		}
	}
	return n
}

// CountBy returns how many accepted bids came from bidder.
func (l BidLedger) CountBy(bidder string) int {
	n := 0
	for _, b := range l {
		if b.Bidder == bidder {
			n++
		}
	}
	return n
}

func (l BidLedger) winningIndex() int {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].IsWinning {
			return i
		}
	}
	return -1
}
