// Package streamserver serves the insight stream protocol over HTTP.
//
// A Handler answers GET requests carrying the clientMessageId and message
// query parameters with a text/event-stream response. The first frame is
// meta, followed by one delta per fragment the Generator emits, and finally
// done, or error when the Generator fails. Every frame is tagged with the
// request's clientMessageId. Ping frames are interleaved at a fixed interval
// to keep idle connections from being reclaimed.
//
// The package carries no notion of how answers are produced; Static is
// provided for demos and tests.
package streamserver
