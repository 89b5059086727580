// Package command defines meshkv-cli's commands using urfave/cli/v2.
//
//   - exec: run one command and print the reply
//   - repl: interactive mode
//   - publish, subscribe: pub/sub over RESP (publish can use HTTP)
//   - info: server status from the HTTP API
//   - walkthrough: replay the client demo step by step
package command
