package domain

// Kind is the discriminant of the Value union.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindHash
	KindList
	KindSet
	KindSortedSet
)

// String returns the type name reported by the TYPE command.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindHash:
		return "hash"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindSortedSet:
		return "zset"
	default:
		return "none"
	}
}

// Value is the tagged union stored under a key.
//
// String is an immutable value type; the container types are pointers and
// are mutated in place by their owner while it holds the key lock.
type Value interface {
	Kind() Kind
	// Len is the byte length of a string or the element count of a container.
	Len() int
}

// String is a binary-safe string value. Counters are strings holding a
// decimal integer or float.
type String string

// Kind implements Value.
func (String) Kind() Kind { return KindString }

// Len implements Value.
func (s String) Len() int { return len(s) }

// Check returns ErrWrongType unless v is nil or of kind k.
func Check(v Value, k Kind) error {
	if v != nil && v.Kind() != k {
		return ErrWrongType
	}
	return nil
}

// NormalizeRange resolves an inclusive [start, stop] pair with negative
// offsets against a sequence of length n. ok is false for an empty range.
func NormalizeRange(start, stop, n int) (lo, hi int, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
