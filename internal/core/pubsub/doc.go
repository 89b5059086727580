// Package pubsub routes published messages to subscriptions.
//
// A subscription names a channel either literally or with a glob pattern
// (see pkg/glob). Auto mode treats a spec containing a glob metacharacter
// as a pattern. Delivery is synchronous: Publish snapshots the matching
// subscriptions under the registry lock, releases it, then calls each
// handler in subscription order on the publishing goroutine.
package pubsub
