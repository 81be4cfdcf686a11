package wais

import "time"

// defaultClock is the real wall clock, in whole seconds, used wherever a
// component needs lastSeenUnixSec and the caller hasn't injected a fake
// clock for testing.
func defaultClock() int64 {
	return time.Now().Unix()
}
