package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/yndnr/meshkv/internal/core/domain"
)

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, domain.ErrNotNumeric
	}
	return n, nil
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.ErrNotNumeric
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, domain.ErrNotFloat
	}
	return f, nil
}

// parseScoreBound parses a ZRANGEBYSCORE bound: a float, "-inf"/"+inf", or
// either prefixed with "(" for an exclusive bound.
func parseScoreBound(s string) (float64, bool, error) {
	exclusive := strings.HasPrefix(s, "(")
	if exclusive {
		s = s[1:]
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, false, domain.ErrNotFloat.WithMessage("min or max is not a float")
	}
	return f, exclusive, nil
}

func parseScoreRange(min, max string) (domain.ScoreRange, error) {
	lo, loEx, err := parseScoreBound(min)
	if err != nil {
		return domain.ScoreRange{}, err
	}
	hi, hiEx, err := parseScoreBound(max)
	if err != nil {
		return domain.ScoreRange{}, err
	}
	return domain.ScoreRange{Min: lo, Max: hi, MinExclusive: loEx, MaxExclusive: hiEx}, nil
}

// formatFloat renders a float the way counters and scores are stored and
// replied: shortest exact decimal, "inf" or "-inf".
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isOpt(arg, name string) bool {
	return strings.EqualFold(arg, name)
}

// scanArgs parses "cursor [MATCH pattern] [COUNT n]" and returns the
// pattern. Every scan completes in one round, so the cursor is ignored
// once validated.
func scanArgs(args []string) (string, error) {
	if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
		return "", domain.ErrInvalidArgument.WithMessage("invalid cursor")
	}
	pattern := "*"
	for i := 1; i < len(args); i++ {
		switch {
		case isOpt(args[i], "MATCH") && i+1 < len(args):
			pattern = args[i+1]
			i++
		case isOpt(args[i], "COUNT") && i+1 < len(args):
			if n, err := parseInt(args[i+1]); err != nil || n < 1 {
				return "", domain.ErrSyntax
			}
			i++
		default:
			return "", domain.ErrSyntax
		}
	}
	return pattern, nil
}
