package output

import (
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Reply is the outcome of one server command.
type Reply struct {
	Value any
	Err   error
}

// NewReply wraps a go-redis result. redis.Nil becomes a nil value.
func NewReply(v any, err error) Reply {
	if errors.Is(err, redis.Nil) {
		return Reply{}
	}
	return Reply{Value: v, Err: err}
}

// normalize converts a value into plain data that encodes cleanly as
// JSON or YAML. Errors become {"error": message}.
func normalize(v any) any {
	switch x := v.(type) {
	case Reply:
		if x.Err != nil {
			return map[string]any{"error": x.Err.Error()}
		}
		return normalize(x.Value)
	case *Reply:
		return normalize(*x)
	case error:
		return map[string]any{"error": x.Error()}
	case []byte:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// sortedPairs flattens a map into key, value, key, value order.
func sortedPairs(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, m[k])
	}
	return out
}
