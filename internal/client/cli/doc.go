// Package cli provides the interactive filestore command-line client.
//
// It mints bearer tokens from the configured client credentials, discovers
// the buckets a filestore API offers and runs a REPL whose commands proxy
// through filestore.Remote buckets. Typical flow: log in (prompting for a
// missing client id or secret), pick a bucket with "use", then upload, list,
// move, delete or expose files.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
