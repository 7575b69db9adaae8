package shared

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatePrefix formats the day part of daily document sequences (orders,
// receipts): YYYYMMDD.
func DatePrefix(t time.Time) string {
	return t.Format("20060102")
}

// NextSequenceNumber computes the next document number under prefix given the
// highest existing number for that prefix. A malformed or non-numeric suffix
// restarts the sequence at 1 instead of failing.
func NextSequenceNumber(prefix, last string) string {
	next := 1
	if strings.HasPrefix(last, prefix) && len(last) > len(prefix) {
		if n, err := strconv.Atoi(last[len(prefix):]); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next)
}
