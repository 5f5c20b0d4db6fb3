package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// ParseDelay parses the W3C "CSS2 time" surface used by <send delay="..."/>
// and <send delayexpr="..."/>: <number>(s|ms|min|h). Invalid or empty text
// yields a zero delay (spec.md §4.3 "invalid text yields zero delay"), never
// an error — a malformed delay attribute must not abort the <send>.
func ParseDelay(text string) time.Duration {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	unit := ""
	numEnd := len(text)
	switch {
	case strings.HasSuffix(text, "ms"):
		unit = "ms"
		numEnd = len(text) - 2
	case strings.HasSuffix(text, "min"):
		unit = "min"
		numEnd = len(text) - 3
	case strings.HasSuffix(text, "s"):
		unit = "s"
		numEnd = len(text) - 1
	case strings.HasSuffix(text, "h"):
		unit = "h"
		numEnd = len(text) - 1
	default:
		return 0
	}
	numText := text[:numEnd]
	n, err := strconv.ParseFloat(numText, 64)
	if err != nil || n < 0 {
		return 0
	}
	switch unit {
	case "ms":
		return time.Duration(n * float64(time.Millisecond))
	case "s":
		return time.Duration(n * float64(time.Second))
	case "min":
		return time.Duration(n * float64(time.Minute))
	case "h":
		return time.Duration(n * float64(time.Hour))
	default:
		return 0
	}
}
