// Package cli provides the interactive drivesync command-line client.
//
// It wires configuration, the gRPC record store client, a blob backend and
// the identity-driven workspace, then runs a REPL over the synchronized
// drive and notes. Listings are live: they reflect the latest snapshot
// pushed by the server, so a change made elsewhere shows up on the next ls.
//
// Key features:
//   - login / logout with an access token
//   - folders and documents: ls, cd, pwd, mkdir, touch, cat, edit (autosaved)
//   - uploads: upload, rm (blob and metadata)
//   - star / share
//   - notes with checklists and pinning
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
