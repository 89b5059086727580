// Package main provides the entry point for meshkv-cli.
//
// Usage:
//
//	meshkv-cli [--server host:port] [--output plain|json|yaml] exec SET greeting hello
//	meshkv-cli repl
//	meshkv-cli subscribe --pattern 'news.*'
//	meshkv-cli publish news.tech "hello"
//	meshkv-cli --http 127.0.0.1:8080 info
//	meshkv-cli walkthrough
package main
