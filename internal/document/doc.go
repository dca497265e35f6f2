// Package document is the registry of open documents and projects.
//
// The Store is the only mutator of both. Every open, update and close
// clears the generation-tagged Cache and dispatches a lifecycle event that
// is fully awaited before the call returns, so subscribers such as the
// indexer always observe a completely applied mutation. Close dispatches
// before removing, letting subscribers read the final state.
//
// A document belongs to every project whose root equals or contains its
// URI. Documents outside every root fall back to the default project
// (types.DefaultProjectURI) when it is open.
package document
