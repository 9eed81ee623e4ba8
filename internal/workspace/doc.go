// Package workspace owns the terminal workspace state: the mapping between
// locally rendered tabs and the externally owned set of running PTY
// sessions, tab groups, the history ledger of closed sessions, and the
// lifecycle operations that tie them to the session registry.
//
// The Store is the single shared state object the rendering layer reads
// from; the Controller is the operation layer UI intents go through. The
// registry remains the ground truth for what is actually running; the Store
// is a cache corrected by reconciliation.
package workspace
