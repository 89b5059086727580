// Package output renders command replies and API results for meshkv-cli.
//
// The plain format prints replies the way redis-cli does ("(integer) 3",
// numbered arrays, "(nil)") and structs as FIELD/VALUE tables. The json
// and yaml formats emit machine-readable documents.
package output
