// Package walkthrough replays the classic client demo against a meshkv
// server: strings, counters, hashes, lists, sets, sorted sets, pub/sub,
// transactions and batches. Each section records the lines the demo prints,
// so the CLI can show them and tests can assert them.
package walkthrough
