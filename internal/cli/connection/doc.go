// Package connection manages meshkv-cli's links to a server.
//
// Commands travel over RESP through a go-redis client; the HTTP client
// reads /v1/info and publishes through the REST API.
package connection
