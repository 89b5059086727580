package walkthrough

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Section is the output of one demo.
type Section struct {
	Name  string   `json:"name" yaml:"name"`
	Lines []string `json:"lines" yaml:"lines"`
}

func (s *Section) printf(format string, args ...any) {
	s.Lines = append(s.Lines, fmt.Sprintf(format, args...))
}

// Demo is one named step of the walkthrough.
type Demo struct {
	Name string
	Run  func(ctx context.Context, rdb *redis.Client, out *Section) error
}

// Demos lists the walkthrough steps in replay order.
var Demos = []Demo{
	{"strings", stringsDemo},
	{"counters", countersDemo},
	{"hashes", hashesDemo},
	{"lists", listsDemo},
	{"sets", setsDemo},
	{"sorted-sets", sortedSetsDemo},
	{"pubsub", pubsubDemo},
	{"transactions", transactionsDemo},
	{"batch", batchDemo},
}

// Run replays every demo in order and stops at the first error. The
// sections completed so far are returned alongside the error.
func Run(ctx context.Context, rdb *redis.Client) ([]Section, error) {
	out := make([]Section, 0, len(Demos))
	for _, d := range Demos {
		s := Section{Name: d.Name}
		err := d.Run(ctx, rdb, &s)
		out = append(out, s)
		if err != nil {
			return out, fmt.Errorf("%s: %w", d.Name, err)
		}
	}
	return out, nil
}

// Find returns the demo with the given name.
func Find(name string) (Demo, bool) {
	for _, d := range Demos {
		if d.Name == name {
			return d, true
		}
	}
	return Demo{}, false
}

func stringsDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const key = "testKey"
	key2 := key + "1"
	if err := rdb.Del(ctx, key, key2).Err(); err != nil {
		return err
	}

	if err := rdb.Set(ctx, key, "testValue", 0).Err(); err != nil {
		return err
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	out.printf("StringGet(%s) value is %s", key, val)

	old, err := rdb.GetSet(ctx, key, "testValue2").Result()
	if err != nil {
		return err
	}
	out.printf("StringGetSet(%s) %s == %s", key, val, old)

	if val, err = rdb.Get(ctx, key).Result(); err != nil {
		return err
	}
	out.printf("StringGet(%s) value is %s", key, val)

	for _, k := range []string{key, key2} {
		ok, err := rdb.SetNX(ctx, k, "someValue", 0).Result()
		if err != nil {
			return err
		}
		if !ok {
			out.printf("Value already exist")
			continue
		}
		if val, err = rdb.Get(ctx, k).Result(); err != nil {
			return err
		}
		out.printf("StringGet(%s) value is %s", k, val)
	}
	return nil
}

func countersDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const intKey, zeroKey, floatKey = "integerKey", "zeroValueKey", "floatValue"

	if err := rdb.Set(ctx, intKey, 1, 0).Err(); err != nil {
		return err
	}
	n, err := rdb.Incr(ctx, intKey).Result()
	if err != nil {
		return err
	}
	out.printf("%d", n)
	if n, err = rdb.IncrBy(ctx, intKey, 100).Result(); err != nil {
		return err
	}
	out.printf("%d", n)

	if err := rdb.Del(ctx, zeroKey).Err(); err != nil {
		return err
	}
	zero, err := getInt(ctx, rdb, zeroKey)
	if err != nil {
		return err
	}
	out.printf("%d", zero)

	if n, err = rdb.Incr(ctx, zeroKey).Result(); err != nil {
		return err
	}
	out.printf("%d", n)

	if err := rdb.Decr(ctx, zeroKey).Err(); err != nil {
		return err
	}
	if n, err = getInt(ctx, rdb, zeroKey); err != nil {
		return err
	}
	out.printf("%d", n)

	if n, err = rdb.DecrBy(ctx, zeroKey, 99).Result(); err != nil {
		return err
	}
	out.printf("%d", n)

	if err := rdb.Append(ctx, zeroKey, "1").Err(); err != nil {
		return err
	}
	if n, err = getInt(ctx, rdb, zeroKey); err != nil {
		return err
	}
	out.printf("%d", n)

	if err := rdb.Set(ctx, floatKey, 1.1, 0).Err(); err != nil {
		return err
	}
	f, err := rdb.IncrByFloat(ctx, floatKey, 0.1).Result()
	if err != nil {
		return err
	}
	out.printf("%s", strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// getInt reads a counter, treating an absent key as 0.
func getInt(ctx context.Context, rdb *redis.Client, key string) (int64, error) {
	n, err := rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func hashesDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const key = "hashKey"
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return err
	}
	if err := rdb.HSet(ctx, key,
		"title", "Redis for .NET Developers",
		"year", 2018,
		"author", "Ranjan Dailata",
	).Err(); err != nil {
		return err
	}

	if ok, err := rdb.HExists(ctx, key, "year").Result(); err != nil {
		return err
	} else if ok {
		year, err := rdb.HGet(ctx, key, "year").Result()
		if err != nil {
			return err
		}
		out.printf("%s", year)
	}

	all, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return err
	}
	fields := make([]string, 0, len(all))
	for f := range all {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		out.printf("key : %s, value : %s", f, all[f])
	}

	vals, err := rdb.HVals(ctx, key).Result()
	if err != nil {
		return err
	}
	out.Lines = append(out.Lines, vals...)

	keys, err := rdb.HKeys(ctx, key).Result()
	if err != nil {
		return err
	}
	out.Lines = append(out.Lines, keys...)

	n, err := rdb.HLen(ctx, key).Result()
	if err != nil {
		return err
	}
	out.printf("%d", n)

	year, err := rdb.HIncrBy(ctx, key, "year", 1).Result()
	if err != nil {
		return err
	}
	out.printf("%d", year)
	year2, err := rdb.HIncrByFloat(ctx, key, "year", -1.5).Result()
	if err != nil {
		return err
	}
	out.printf("%s", strconv.FormatFloat(year2, 'f', -1, 64))
	return nil
}

func alphabet() []any {
	letters := make([]any, 0, 26)
	for c := 'a'; c <= 'z'; c++ {
		letters = append(letters, string(c))
	}
	return letters
}

func listsDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const key, dst = "listKey", "destinationList"
	if err := rdb.Del(ctx, key, dst).Err(); err != nil {
		return err
	}

	if err := rdb.RPush(ctx, key, "a").Err(); err != nil {
		return err
	}
	n, err := rdb.LLen(ctx, key).Result()
	if err != nil {
		return err
	}
	out.printf("%d", n)
	if err := rdb.RPush(ctx, key, "b").Err(); err != nil {
		return err
	}
	if n, err = rdb.LLen(ctx, key).Result(); err != nil {
		return err
	}
	out.printf("%d", n)

	reset := func() error {
		if err := rdb.Del(ctx, key).Err(); err != nil {
			return err
		}
		return rdb.RPush(ctx, key, alphabet()...).Err()
	}
	concat := func(start, stop int64) (string, error) {
		items, err := rdb.LRange(ctx, key, start, stop).Result()
		return strings.Join(items, ""), err
	}

	if err := reset(); err != nil {
		return err
	}
	if n, err = rdb.LLen(ctx, key).Result(); err != nil {
		return err
	}
	out.printf("%d", n)
	for _, r := range [][2]int64{{0, -1}, {-5, -1}, {0, 4}} {
		s, err := concat(r[0], r[1])
		if err != nil {
			return err
		}
		out.printf("%s", s)
	}
	if err := rdb.LTrim(ctx, key, 0, 1).Err(); err != nil {
		return err
	}
	s, err := concat(0, -1)
	if err != nil {
		return err
	}
	out.printf("%s", s)

	if err := reset(); err != nil {
		return err
	}
	first, err := rdb.LPop(ctx, key).Result()
	if err != nil {
		return err
	}
	out.printf("%s", first)
	last, err := rdb.RPop(ctx, key).Result()
	if err != nil {
		return err
	}
	out.printf("%s", last)
	if err := rdb.LRem(ctx, key, 0, "c").Err(); err != nil {
		return err
	}
	if s, err = concat(0, -1); err != nil {
		return err
	}
	out.printf("%s", s)
	if err := rdb.LSet(ctx, key, 1, "c").Err(); err != nil {
		return err
	}
	if s, err = concat(0, -1); err != nil {
		return err
	}
	out.printf("%s", s)
	third, err := rdb.LIndex(ctx, key, 3).Result()
	if err != nil {
		return err
	}
	out.printf("%s", third)

	if err := reset(); err != nil {
		return err
	}
	if n, err = rdb.LLen(ctx, key).Result(); err != nil {
		return err
	}
	var moved strings.Builder
	for i := int64(0); i < n; i++ {
		v, err := rdb.RPopLPush(ctx, key, dst).Result()
		if err != nil {
			return err
		}
		moved.WriteString(v)
	}
	out.printf("%s", moved.String())
	return nil
}

func setsDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const key, alphaKey, numKey, dst = "setKey", "alphaKey", "numberKey", "destKey"
	if err := rdb.Del(ctx, key, alphaKey, numKey, dst).Err(); err != nil {
		return err
	}

	for i := 1; i <= 10; i++ {
		if err := rdb.SAdd(ctx, key, i).Err(); err != nil {
			return err
		}
	}
	printMembers := func(k string) error {
		members, err := rdb.SMembers(ctx, k).Result()
		if err != nil {
			return err
		}
		out.printf("%s", strings.Join(members, ","))
		return nil
	}
	printBool := func(ok bool, err error) error {
		if err != nil {
			return err
		}
		out.printf("%t", ok)
		return nil
	}
	printList := func(vals []string, err error) error {
		if err != nil {
			return err
		}
		out.printf("%s", strings.Join(vals, ","))
		return nil
	}

	if err := printMembers(key); err != nil {
		return err
	}
	if err := rdb.SRem(ctx, key, 5).Err(); err != nil {
		return err
	}
	if err := printBool(rdb.SIsMember(ctx, key, 5).Result()); err != nil {
		return err
	}
	if err := printMembers(key); err != nil {
		return err
	}
	if err := printBool(rdb.SIsMember(ctx, key, 10).Result()); err != nil {
		return err
	}
	card, err := rdb.SCard(ctx, key).Result()
	if err != nil {
		return err
	}
	out.printf("%d", card)

	if err := rdb.SAdd(ctx, alphaKey, "a", "b", "c").Err(); err != nil {
		return err
	}
	if err := rdb.SAdd(ctx, numKey, "1", "2", "3").Err(); err != nil {
		return err
	}
	if err := printList(rdb.SUnion(ctx, numKey, alphaKey).Result()); err != nil {
		return err
	}
	if err := printList(rdb.SDiff(ctx, key, numKey).Result()); err != nil {
		return err
	}
	if err := printList(rdb.SInter(ctx, key, numKey).Result()); err != nil {
		return err
	}

	if err := rdb.SMove(ctx, numKey, alphaKey, "2").Err(); err != nil {
		return err
	}
	if err := printMembers(alphaKey); err != nil {
		return err
	}
	if err := rdb.SAdd(ctx, alphaKey, "apple").Err(); err != nil {
		return err
	}
	for _, pattern := range []string{"ap*", "a*"} {
		vals, _, err := rdb.SScan(ctx, alphaKey, 0, pattern, 0).Result()
		if err := printList(vals, err); err != nil {
			return err
		}
	}

	if err := rdb.SUnionStore(ctx, dst, numKey, alphaKey).Err(); err != nil {
		return err
	}
	if err := printMembers(dst); err != nil {
		return err
	}
	popped, err := rdb.SPop(ctx, numKey).Result()
	if err != nil {
		return err
	}
	out.printf("%s", popped)
	return nil
}

var topProgrammers = []string{
	"Dennis Ritchie",
	"Linus Torvalds",
	"Bjarne Stroustrup",
	"Tim Berners-Lee",
	"Brian Kernighan",
	"Donald Knuth",
	"Ken Thompson",
	"Guido van Rossum",
	"James Gosling",
	"Bill Gates",
	"Niklaus Wirth",
	"Ada Lovelace",
}

func sortedSetsDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const hackers, alphaKey, dst, inter = "hackers", "alphaKey", "destKey", "intersectKey"
	if err := rdb.Del(ctx, hackers, alphaKey, dst, inter).Err(); err != nil {
		return err
	}

	for i, name := range topProgrammers {
		if err := rdb.ZAdd(ctx, hackers, redis.Z{Score: float64(i + 1), Member: name}).Err(); err != nil {
			return err
		}
	}

	scan := func(key string) error {
		pairs, _, err := rdb.ZScan(ctx, key, 0, "", 0).Result()
		if err != nil {
			return err
		}
		entries := make([]string, 0, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			entries = append(entries, pairs[i]+": "+pairs[i+1])
		}
		out.printf("%s", strings.Join(entries, ",\n"))
		return nil
	}
	joined := func(vals []string, err error) error {
		if err != nil {
			return err
		}
		out.printf("%s", strings.Join(vals, ",\n"))
		return nil
	}
	score := func(member string) error {
		s, err := rdb.ZScore(ctx, hackers, member).Result()
		if err != nil {
			return err
		}
		out.printf("%s", strconv.FormatFloat(s, 'f', -1, 64))
		return nil
	}

	if err := scan(hackers); err != nil {
		return err
	}
	card, err := rdb.ZCard(ctx, hackers).Result()
	if err != nil {
		return err
	}
	out.printf("%d", card)
	if err := joined(rdb.ZRange(ctx, hackers, 0, -1).Result()); err != nil {
		return err
	}
	rank, err := rdb.ZRank(ctx, hackers, "Linus Torvalds").Result()
	if err != nil {
		return err
	}
	out.printf("%d", rank)
	if err := joined(rdb.ZRevRangeByScore(ctx, hackers, &redis.ZRangeBy{
		Min: "1",
		Max: strconv.Itoa(len(topProgrammers)),
	}).Result()); err != nil {
		return err
	}

	if err := rdb.ZIncrBy(ctx, hackers, 100, "Linus Torvalds").Err(); err != nil {
		return err
	}
	if err := score("Linus Torvalds"); err != nil {
		return err
	}
	if err := rdb.ZIncrBy(ctx, hackers, -100, "Linus Torvalds").Err(); err != nil {
		return err
	}
	if err := score("Linus Torvalds"); err != nil {
		return err
	}

	for _, m := range []string{"a", "b", "c"} {
		if err := rdb.ZAdd(ctx, alphaKey, redis.Z{Score: 1, Member: m}).Err(); err != nil {
			return err
		}
	}

	if err := rdb.ZUnionStore(ctx, dst, &redis.ZStore{Keys: []string{hackers, alphaKey}}).Err(); err != nil {
		return err
	}
	out.printf("**********UNION**************")
	if err := scan(dst); err != nil {
		return err
	}

	if err := rdb.ZInterStore(ctx, inter, &redis.ZStore{Keys: []string{hackers, dst}}).Err(); err != nil {
		return err
	}
	out.printf("**********INTERSECT**************")
	if err := scan(inter); err != nil {
		return err
	}

	withScores, err := rdb.ZRangeByScoreWithScores(ctx, hackers, &redis.ZRangeBy{Min: "2", Max: "4"}).Result()
	if err != nil {
		return err
	}
	entries := make([]string, 0, len(withScores))
	for _, z := range withScores {
		entries = append(entries, fmt.Sprintf("%v: %s", z.Member, strconv.FormatFloat(z.Score, 'f', -1, 64)))
	}
	out.printf("**********RANGE BY SCORE WITH SCORES**************")
	out.printf("%s", strings.Join(entries, ",\n"))

	if err := rdb.ZRem(ctx, alphaKey, "a").Err(); err != nil {
		return err
	}
	out.printf("**********REMOVE**************")
	if err := scan(alphaKey); err != nil {
		return err
	}

	if err := rdb.ZRemRangeByScore(ctx, dst, "0", "11").Err(); err != nil {
		return err
	}
	out.printf("**********REMOVE BY SCORE**************")
	return scan(dst)
}

const receiveTimeout = 2 * time.Second

// expect reads n messages from ps and prints them.
func expect(ctx context.Context, ps *redis.PubSub, n int64, out *Section) error {
	for i := int64(0); i < n; i++ {
		rctx, cancel := context.WithTimeout(ctx, receiveTimeout)
		msg, err := ps.ReceiveMessage(rctx)
		cancel()
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		switch {
		case msg.Pattern != "":
			out.printf("Got pattern %s notification: %s", msg.Pattern, msg.Payload)
		case msg.Channel == "test":
			out.printf("Got notification: %s", msg.Payload)
		default:
			out.printf("Got literal %s notification: %s", msg.Channel, msg.Payload)
		}
	}
	return nil
}

// confirm waits for the server to acknowledge a (un)subscribe request, so a
// publish issued on another connection afterwards observes it.
func confirm(ctx context.Context, ps *redis.PubSub, err error) error {
	if err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(ctx, receiveTimeout)
	defer cancel()
	msg, err := ps.Receive(rctx)
	if err != nil {
		return err
	}
	if _, ok := msg.(*redis.Subscription); !ok {
		return fmt.Errorf("unexpected %T while waiting for subscription ack", msg)
	}
	return nil
}

func pubsubDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	sub := rdb.Subscribe(ctx, "test")
	defer sub.Close()
	if err := confirm(ctx, sub, nil); err != nil {
		return err
	}

	publish := func(channel, message string) (int64, error) {
		n, err := rdb.Publish(ctx, channel, message).Result()
		if err != nil {
			return 0, err
		}
		return n, expect(ctx, sub, n, out)
	}

	n, err := publish("test", "Hello there I am a test message")
	if err != nil {
		return err
	}
	out.printf("Number of listeners for test %d", n)

	if err := confirm(ctx, sub, sub.PSubscribe(ctx, "a*c")); err != nil {
		return err
	}
	if n, err = publish("a*c", "Hello there I am a a*c message"); err != nil {
		return err
	}
	out.printf("Number of listeners for a*c %d", n)

	for _, ch := range []string{"abc", "a1234567890c", "ab"} {
		if _, err := publish(ch, "Hello there I am a "+ch+" message"); err != nil {
			return err
		}
	}

	// A literal subscription never pattern matches.
	if err := confirm(ctx, sub, sub.Subscribe(ctx, "*123")); err != nil {
		return err
	}
	for _, ch := range []string{"*123", "a123"} {
		if _, err := publish(ch, "Hello there I am a "+ch+" message"); err != nil {
			return err
		}
	}

	// Auto mode: the glob metacharacter makes zyx* a pattern.
	if err := confirm(ctx, sub, sub.PSubscribe(ctx, "zyx*")); err != nil {
		return err
	}
	for _, ch := range []string{"zyxabc", "zyx1234"} {
		if _, err := publish(ch, "Hello there I am a "+ch+" message"); err != nil {
			return err
		}
	}

	late := rdb.Subscribe(ctx, "test")
	defer late.Close()
	if err := confirm(ctx, late, nil); err != nil {
		return err
	}

	if err := confirm(ctx, sub, sub.PUnsubscribe(ctx, "a*c")); err != nil {
		return err
	}
	if n, err = publish("abc", "Hello there I am a abc message"); err != nil {
		return err
	}
	out.printf("Number of listeners for a*c %d", n)
	return nil
}

var errConditionFailed = errors.New("condition failed")

func transactionsDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const alphaKey, betaKey, gammaKey = "alphaKey", "betaKey", "gammaKey"
	if err := rdb.Del(ctx, alphaKey, betaKey, gammaKey).Err(); err != nil {
		return err
	}

	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, alphaKey, "abc", 0)
		return nil
	})
	alpha, gerr := rdb.Get(ctx, alphaKey).Result()
	if gerr != nil {
		return gerr
	}
	out.printf("Alpha key is %s and result is %t", alpha, err == nil)

	// Increment gamma only while it does not exist.
	incrIfAbsent := func() (bool, error) {
		err := rdb.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, gammaKey).Result()
			if err != nil {
				return err
			}
			if n != 0 {
				return errConditionFailed
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Incr(ctx, gammaKey)
				return nil
			})
			return err
		}, gammaKey)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, errConditionFailed), errors.Is(err, redis.TxFailedErr):
			return false, nil
		}
		return false, err
	}

	for i := 0; i < 2; i++ {
		ok, err := incrIfAbsent()
		if err != nil {
			return err
		}
		gamma, err := rdb.Get(ctx, gammaKey).Result()
		if err != nil {
			return err
		}
		out.printf("Gamma key is %s and result is %t", gamma, ok)
	}
	return nil
}

func batchDemo(ctx context.Context, rdb *redis.Client, out *Section) error {
	const alphaKey, betaKey = "alphaKey", "betaKey"
	if err := rdb.Del(ctx, alphaKey, betaKey).Err(); err != nil {
		return err
	}

	var alphaGet *redis.StringCmd
	if _, err := rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, alphaKey, "abc", 0)
		pipe.Set(ctx, betaKey, "beta", 0)
		alphaGet = pipe.Get(ctx, alphaKey)
		return nil
	}); err != nil {
		return err
	}
	out.printf("Redis Task wait and read %s", alphaGet.Val())

	beta, err := rdb.Get(ctx, betaKey).Result()
	if err != nil {
		return err
	}
	out.printf("Task wait and read %s", beta)

	// The batch runs as one unit on the server.
	if _, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, alphaKey)
		for _, k := range []string{alphaKey, betaKey} {
			pipe.Set(ctx, k, "123", 0)
		}
		return nil
	}); err != nil {
		return err
	}

	for _, k := range []struct{ label, key string }{{"Alpha", alphaKey}, {"Beta", betaKey}} {
		v, err := rdb.Get(ctx, k.key).Result()
		if err != nil {
			return err
		}
		out.printf("%s read value %s", k.label, v)
	}
	return nil
}
