// Package config holds meshkv-cli's preferences file (~/.meshkv/cli.yaml):
// default addresses, output format, history location and named server
// profiles. Command-line flags always take precedence.
package config
