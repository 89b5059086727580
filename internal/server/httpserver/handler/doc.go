// Package handler provides the HTTP request handlers for meshkv.
//
// Responses use the envelope in Response. Errors carry the domain error code
// in both the body and the X-Error-Code header.
package handler
