package services

import (
	"math"
	"time"
)

// maxTime is the latest instant a deadline can saturate to.
var maxTime = time.Unix(math.MaxInt64/2, 0).UTC()

// AntiSnipePolicy pushes the deadline back when a bid lands close to it.
// MaxExtensions bounds how many times one auction can be extended; zero
// means no bound.
type AntiSnipePolicy struct {
	Window        time.Duration
	Extension     time.Duration
	MaxExtensions int
}

func DefaultAntiSnipePolicy() AntiSnipePolicy {
	return AntiSnipePolicy{
		Window:        300 * time.Second,
		Extension:     300 * time.Second,
		MaxExtensions: 3,
	}
}

// Apply returns the deadline to use after a bid accepted at now, and
// whether it moved. The deadline never moves backwards.
func (p AntiSnipePolicy) Apply(endTime, now time.Time, extensionsSoFar int) (time.Time, bool) {
	if p.Extension <= 0 || endTime.Sub(now) >= p.Window {
		return endTime, false
	}
	if p.MaxExtensions > 0 && extensionsSoFar >= p.MaxExtensions {
		return endTime, false
	}
	return saturatingAdd(endTime, p.Extension), true
}

func saturatingAdd(t time.Time, d time.Duration) time.Time {
	if t.After(maxTime.Add(-d)) {
		return maxTime
	}
	return t.Add(d)
}
