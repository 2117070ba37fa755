package calls

import "time"

// Clock abstracts the wall clock so dedup windows, expiries, and tick
// timestamps are deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns a Clock backed by time.Now in UTC
func SystemClock() Clock {
	return systemClock{}
}
