// Package jobs runs background work such as screen translations.
//
// Jobs are persisted before they are queued so that pending and interrupted
// work survives a restart; a Registry rebuilds executable jobs from their
// stored records during recovery.
package jobs
