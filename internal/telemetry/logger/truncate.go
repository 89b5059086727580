package logger

import (
	"fmt"
	"log/slog"
)

// DefaultMaxValueLength bounds logged string values. Command arguments and
// published messages can be megabytes long.
const DefaultMaxValueLength = 256

// maxLoggedArgs bounds the number of elements logged from a []string.
const maxLoggedArgs = 16

// Truncate shortens s to max bytes, noting how much was cut.
func Truncate(s string, max int) string {
	if max < 0 || len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s...(%d more bytes)", s[:max], len(s)-max)
}

// truncateAttr shortens string values and []string arguments.
func truncateAttr(a slog.Attr, max int) slog.Attr {
	if max < 0 {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); len(s) > max {
			return slog.String(a.Key, Truncate(s, max))
		}
	case slog.KindAny:
		if args, ok := a.Value.Any().([]string); ok {
			return slog.Any(a.Key, truncateArgs(args, max))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = truncateAttr(attr, max)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

func truncateArgs(args []string, max int) []string {
	n := len(args)
	if n > maxLoggedArgs {
		n = maxLoggedArgs
	}
	out := make([]string, 0, n+1)
	for _, s := range args[:n] {
		out = append(out, Truncate(s, max))
	}
	if len(args) > n {
		out = append(out, fmt.Sprintf("...(%d more args)", len(args)-n))
	}
	return out
}
