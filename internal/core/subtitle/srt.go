// Package subtitle renders timed transcript segments as SRT text.
package subtitle

import (
	"fmt"
	"math"
	"strings"
)

// Segment is one timed piece of recognized speech. Start and End are seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Format renders segments as an SRT block: 1-based index, timestamp range,
// trimmed text, blank-line separator. An empty slice yields an empty string.
func Format(segments []Segment) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, Timestamp(seg.Start), Timestamp(seg.End), strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// Timestamp renders seconds as HH:MM:SS,mmm. Sub-millisecond precision is
// truncated, not rounded.
func Timestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	whole := int(seconds)
	h := whole / 3600
	m := whole % 3600 / 60
	s := whole % 60
	ms := int((seconds - math.Floor(seconds)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
