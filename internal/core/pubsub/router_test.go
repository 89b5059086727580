package pubsub

import (
	"slices"
	"sync"
	"testing"
)

type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (b *inbox) handler(name string) Handler {
	return func(channel, message string) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.msgs = append(b.msgs, name+":"+channel+":"+message)
	}
}

func (b *inbox) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.msgs)
}

func TestMode_Resolve(t *testing.T) {
	tests := []struct {
		mode Mode
		spec string
		want Mode
	}{
		{Auto, "news", Literal},
		{Auto, "zyx*", Pattern},
		{Auto, "a?c", Pattern},
		{Auto, "[ab]", Pattern},
		{Literal, "*123", Literal},
		{Pattern, "plain", Pattern},
	}
	for _, tt := range tests {
		if got := tt.mode.Resolve(tt.spec); got != tt.want {
			t.Errorf("%v.Resolve(%q) = %v, want %v", tt.mode, tt.spec, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": Auto, "AUTO": Auto, "literal": Literal, "Pattern": Pattern} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("regex"); err == nil {
		t.Error("ParseMode(regex) should fail")
	}
}

func TestRouter_Walkthrough(t *testing.T) {
	r := NewRouter()
	box := &inbox{}

	r.Subscribe("test", Literal, box.handler("lit"))
	r.Subscribe("a*c", Pattern, box.handler("pat"))
	r.Subscribe("*123", Literal, box.handler("star"))
	r.Subscribe("zyx*", Auto, box.handler("auto"))

	tests := []struct {
		channel string
		want    int
	}{
		{"test", 1},
		{"abc", 1},
		{"a1234567890c", 1},
		{"ab", 0},
		{"*123", 1},
		{"x123", 0},
		{"zyxabc", 1},
	}
	for _, tt := range tests {
		if got := r.Publish(tt.channel, "hello"); got != tt.want {
			t.Errorf("Publish(%q) = %d, want %d", tt.channel, got, tt.want)
		}
	}

	want := []string{
		"lit:test:hello",
		"pat:abc:hello",
		"pat:a1234567890c:hello",
		"star:*123:hello",
		"auto:zyxabc:hello",
	}
	if got := box.all(); !slices.Equal(got, want) {
		t.Errorf("delivered = %v, want %v", got, want)
	}

	if n := r.Unsubscribe("a*c"); n != 1 {
		t.Errorf("Unsubscribe(a*c) = %d, want 1", n)
	}
	if got := r.Publish("abc", "again"); got != 0 {
		t.Errorf("Publish after unsubscribe = %d, want 0", got)
	}
	if n := r.Unsubscribe("a*c"); n != 0 {
		t.Errorf("second Unsubscribe = %d, want 0", n)
	}
}

func TestRouter_LateSubscriberAndOrder(t *testing.T) {
	r := NewRouter()
	box := &inbox{}

	if got := r.Publish("news", "early"); got != 0 {
		t.Errorf("Publish with no subscribers = %d, want 0", got)
	}
	r.Subscribe("n*", Auto, box.handler("first"))
	r.Subscribe("news", Auto, box.handler("second"))
	r.Subscribe("*s", Auto, box.handler("third"))

	if got := r.Publish("news", "late"); got != 3 {
		t.Errorf("Publish = %d, want 3", got)
	}
	want := []string{"first:news:late", "second:news:late", "third:news:late"}
	if got := box.all(); !slices.Equal(got, want) {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
}

func TestRouter_Remove(t *testing.T) {
	r := NewRouter()
	box := &inbox{}
	a := r.Subscribe("ch", Literal, box.handler("a"))
	r.Subscribe("ch", Literal, box.handler("b"))
	p := r.Subscribe("c*", Pattern, box.handler("p"))

	if !r.Remove(a) || r.Remove(a) {
		t.Error("Remove should succeed once")
	}
	if !r.Remove(p) {
		t.Error("Remove(pattern) = false")
	}
	if got := r.Publish("ch", "m"); got != 1 {
		t.Errorf("Publish = %d, want 1", got)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRouter_Introspection(t *testing.T) {
	r := NewRouter()
	noop := func(string, string) {}
	r.Subscribe("news.tech", Literal, noop)
	r.Subscribe("news.tech", Literal, noop)
	r.Subscribe("news.art", Literal, noop)
	r.Subscribe("news.*", Pattern, noop)

	if got := r.Channels("news.t*"); !slices.Equal(got, []string{"news.tech"}) {
		t.Errorf("Channels(news.t*) = %v", got)
	}
	if got := r.Channels(""); len(got) != 2 {
		t.Errorf("Channels() = %v", got)
	}
	if got := r.NumSub("news.tech", "none"); !slices.Equal(got, []int{2, 0}) {
		t.Errorf("NumSub() = %v", got)
	}
	if r.NumPat() != 1 {
		t.Errorf("NumPat() = %d, want 1", r.NumPat())
	}
}

func TestRouter_HandlerPanicIsContained(t *testing.T) {
	r := NewRouter()
	box := &inbox{}
	r.Subscribe("ch", Literal, func(string, string) { panic("boom") })
	r.Subscribe("ch", Literal, box.handler("ok"))

	if got := r.Publish("ch", "m"); got != 2 {
		t.Errorf("Publish = %d, want 2", got)
	}
	if len(box.all()) != 1 {
		t.Errorf("second handler not called after panic")
	}
}

func TestRouter_HandlerMayResubscribe(t *testing.T) {
	r := NewRouter()
	var sub *Subscription
	sub = r.Subscribe("ch", Literal, func(string, string) {
		r.Remove(sub)
		r.Subscribe("other", Literal, func(string, string) {})
	})
	if got := r.Publish("ch", "m"); got != 1 {
		t.Errorf("Publish = %d, want 1", got)
	}
	if got := r.Publish("ch", "m"); got != 0 {
		t.Errorf("Publish after self-removal = %d, want 0", got)
	}
}
