// Package portability moves design assets between installations.
//
// An Exporter walks a screen and everything it depends on (screen
// categories, watcher scripts and their categories, nested screens) and
// produces a forest of ExportNode values keyed by stable id, plus a flat
// Payload for transport. An Importer replays a Payload into a store inside a
// single transaction, writing dependents before the nodes that reference
// them and matching existing entities by stable id. Options controls how
// collisions and invalid nodes are handled.
package portability
