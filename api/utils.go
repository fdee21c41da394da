package api

import (
	"sync/atomic"
	"time"
)

var (
	lastTimestamp int64
)

// nextTimestampRange reserves count strictly increasing nanosecond timestamps
// and returns the first one.
func nextTimestampRange(count int) int64 {
	if count <= 0 {
		return 0
	}
	n := int64(count)
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now+n-1) {
			return now
		}
	}
}
