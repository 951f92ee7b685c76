// Package export turns icon records into downloads: a single icon as SVG or a
// fixed-size PNG, or a whole list as a draw.io library.
//
// Delivery goes through the Downloader capability so the same exporters serve
// HTTP responses (the browser) and blob stores (the command line).
package export
