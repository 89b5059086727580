package domain

// List is an ordered sequence of values; duplicates are allowed.
type List struct {
	items []string
}

// NewList creates a list holding values in order.
func NewList(values ...string) *List {
	l := &List{items: make([]string, 0, len(values))}
	l.items = append(l.items, values...)
	return l
}

// Kind implements Value.
func (l *List) Kind() Kind { return KindList }

// Len implements Value.
func (l *List) Len() int { return len(l.items) }

// PushBack appends values to the tail in order.
func (l *List) PushBack(values ...string) int {
	l.items = append(l.items, values...)
	return len(l.items)
}

// PushFront inserts each value at the head in turn, so the last argument
// ends up first.
func (l *List) PushFront(values ...string) int {
	grown := make([]string, len(values), len(values)+len(l.items))
	for i, v := range values {
		grown[len(values)-1-i] = v
	}
	l.items = append(grown, l.items...)
	return len(l.items)
}

// PopFront removes and returns the head.
func (l *List) PopFront() (string, bool) {
	if len(l.items) == 0 {
		return "", false
	}
	v := l.items[0]
	l.items[0] = ""
	l.items = l.items[1:]
	return v, true
}

// PopBack removes and returns the tail.
func (l *List) PopBack() (string, bool) {
	n := len(l.items)
	if n == 0 {
		return "", false
	}
	v := l.items[n-1]
	l.items = l.items[:n-1]
	return v, true
}

func (l *List) resolve(index int) (int, bool) {
	if index < 0 {
		index += len(l.items)
	}
	if index < 0 || index >= len(l.items) {
		return 0, false
	}
	return index, true
}

// Index returns the element at index; negative indexes count from the tail.
func (l *List) Index(index int) (string, bool) {
	i, ok := l.resolve(index)
	if !ok {
		return "", false
	}
	return l.items[i], true
}

// Set replaces the element at index or returns ErrOutOfRange.
func (l *List) Set(index int, value string) error {
	i, ok := l.resolve(index)
	if !ok {
		return ErrOutOfRange
	}
	l.items[i] = value
	return nil
}

// Range returns a copy of the inclusive range [start, stop].
func (l *List) Range(start, stop int) []string {
	lo, hi, ok := NormalizeRange(start, stop, len(l.items))
	if !ok {
		return []string{}
	}
	out := make([]string, hi-lo+1)
	copy(out, l.items[lo:hi+1])
	return out
}

// Trim keeps only the inclusive range [start, stop].
func (l *List) Trim(start, stop int) {
	lo, hi, ok := NormalizeRange(start, stop, len(l.items))
	if !ok {
		l.items = nil
		return
	}
	kept := make([]string, hi-lo+1)
	copy(kept, l.items[lo:hi+1])
	l.items = kept
}

// Remove deletes occurrences of value. count > 0 removes up to count from
// the head, count < 0 up to -count from the tail, count == 0 removes all.
// It returns the number of removed elements.
func (l *List) Remove(value string, count int) int {
	limit := count
	if limit < 0 {
		limit = -limit
	}
	removed := 0
	keep := make([]bool, len(l.items))
	for i := range keep {
		keep[i] = true
	}

	visit := func(i int) bool {
		if l.items[i] == value && (limit == 0 || removed < limit) {
			keep[i] = false
			removed++
		}
		return limit == 0 || removed < limit
	}
	if count < 0 {
		for i := len(l.items) - 1; i >= 0 && visit(i); i-- {
		}
	} else {
		for i := 0; i < len(l.items) && visit(i); i++ {
		}
	}

	if removed == 0 {
		return 0
	}
	out := make([]string, 0, len(l.items)-removed)
	for i, v := range l.items {
		if keep[i] {
			out = append(out, v)
		}
	}
	l.items = out
	return removed
}

// Items returns a copy of every element.
func (l *List) Items() []string {
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}
