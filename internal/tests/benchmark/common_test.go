package benchmark

import (
	"fmt"
	"runtime"
	"strconv"
	"testing"

	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// SmallKeyCounts defines the key space sizes for benchmarking.
var SmallKeyCounts = []int{1000, 10000, 100000}

// ShardCounts compares lock striping widths.
var ShardCounts = []int{1, 16, 64, 256}

// keyspaceShards is the stripe count used when shards are not under test.
const keyspaceShards = 64

func newEngine(shards int) *engine.Engine {
	return engine.New(keyspace.New(keyspace.WithShards(shards)), engine.WithRandSeed(1))
}

func key(i int) string {
	return "key:" + strconv.Itoa(i)
}

// prefill stores count string keys.
func prefill(b *testing.B, e *engine.Engine, count int) {
	b.Helper()
	for i := 0; i < count; i++ {
		if res := e.Exec(engine.NewCommand("SET", key(i), "value-"+strconv.Itoa(i))); res.Err != nil {
			b.Fatalf("SET failed: %v", res.Err)
		}
	}
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs a benchmark function with various key counts.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
