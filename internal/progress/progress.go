// Package progress estimates completion and time remaining for a streaming
// conversion whose total line count is only known approximately.
package progress

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLineBytes approximates the byte length of one data line.
	DefaultLineBytes = 2200
	// DefaultInterval is the number of records between reports.
	DefaultInterval = 10000

	barWidth = 50
)

// EstimateLines derives an approximate line count from an input byte size.
// The result is at least one.
func EstimateLines(size int64, lineBytes int) int {
	if lineBytes <= 0 {
		lineBytes = DefaultLineBytes
	}
	n := int(size / int64(lineBytes))
	if n < 1 {
		n = 1
	}
	return n
}

// Percent returns current*100/total with integer truncation.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}

// Remaining estimates the time left from the elapsed time and the percentage
// done. The estimate is zero once percent reaches 100.
func Remaining(elapsed time.Duration, percent int) time.Duration {
	if percent <= 0 || percent >= 100 {
		return 0
	}
	ms := elapsed.Milliseconds()
	return time.Duration((ms/int64(percent))*int64(100-percent)) * time.Millisecond
}

// FormatRemaining renders d as "1d 2h 3m 4s", omitting leading zero units.
// Seconds are always shown.
func FormatRemaining(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	var sb strings.Builder
	if days > 0 {
		fmt.Fprintf(&sb, "%dd ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&sb, "%dh ", hours%24)
	}
	if minutes > 0 {
		fmt.Fprintf(&sb, "%dm ", minutes%60)
	}
	fmt.Fprintf(&sb, "%ds", seconds%60)
	return sb.String()
}

// Estimator formats progress lines against a fixed estimated total.
type Estimator struct {
	total   int
	showBar bool
}

// New creates an Estimator for an estimated number of records. The bar is
// drawn only when showBar is set; verbose logs carry the text alone.
func New(total int, showBar bool) *Estimator {
	if total < 1 {
		total = 1
	}
	return &Estimator{total: total, showBar: showBar}
}

// Total returns the estimated record count.
func (e *Estimator) Total() int {
	return e.total
}

// Report returns a progress line for current records after elapsed time.
// The count may exceed the estimate.
func (e *Estimator) Report(current int, elapsed time.Duration) string {
	percent := Percent(current, e.total)

	var sb strings.Builder
	if e.showBar {
		sb.WriteString(bar(percent))
		fmt.Fprintf(&sb, " %d%% ", percent)
	}
	fmt.Fprintf(&sb, "Current line: %d/%d ETR: ", current, e.total)

	if percent == 0 {
		sb.WriteString("Calculating...")
		return sb.String()
	}
	sb.WriteString(FormatRemaining(Remaining(elapsed, percent)))
	return sb.String()
}

func bar(percent int) string {
	pos := barWidth * percent / 100
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < barWidth; i++ {
		switch {
		case i < pos:
			sb.WriteByte('=')
		case i == pos:
			sb.WriteByte('>')
		default:
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
