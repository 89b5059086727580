// Package redisserver serves meshkv over RESP2, the Redis wire protocol.
//
// Requests are decoded into engine commands and executed against the
// engine; replies are encoded back as RESP values. The connection layer
// adds what the engine does not know about:
//   - PING, ECHO, QUIT, SELECT 0, CLIENT SETNAME/GETNAME/ID/SETINFO
//   - MULTI, EXEC, DISCARD, WATCH, UNWATCH (per-connection transaction)
//   - SUBSCRIBE, PSUBSCRIBE, UNSUBSCRIBE, PUNSUBSCRIBE, PUBLISH, PUBSUB
//
// HELLO is answered with an error so RESP3-capable clients fall back to
// RESP2. A connection holding subscriptions only accepts the subscribe
// family, PING and QUIT.
package redisserver
