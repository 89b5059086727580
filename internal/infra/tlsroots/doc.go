// Package tlsroots loads the TLS material for meshkv's listeners and
// clients.
//
//   - roots.go: CA bundles for verifying peers
//   - keypair.go: a server key pair that can be reloaded while serving
package tlsroots
