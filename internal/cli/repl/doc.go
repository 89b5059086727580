// Package repl implements meshkv-cli's interactive mode.
//
// Lines are split like a shell (single quotes, double quotes with
// backslash escapes) and sent to the current server. A few words are
// handled locally: CONNECT, DISCONNECT, HELP, HISTORY, EXIT and QUIT.
// SUBSCRIBE and PSUBSCRIBE are refused because they take over the
// connection; use the subscribe subcommand instead.
package repl
