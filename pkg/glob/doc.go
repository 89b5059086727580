// Package glob implements the glob dialect used for channel patterns and
// key/member scans.
//
// Supported syntax:
//
//   - `*` matches any run of characters, including the empty run
//   - `?` matches exactly one character
//   - `[abc]`, `[a-z]`, `[^a-z]` match one character from (or not from) a class
//   - `\x` matches the character x literally
//
// A pattern always matches the whole subject, never a substring.
package glob
