// Package httputil writes the JSON envelopes shared by the copyloop API.
//
// Errors always carry a machine-readable code next to the message, and 5xx
// responses never echo the underlying error back to the client.
package httputil
