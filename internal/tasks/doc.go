// package tasks implements the paginated fetch pipeline feeding lineups.
//
// The core abstraction is [Engine], which runs one page fetch at a time per
// lineup: it pulls a raw page from the catalog provider, filters out null,
// deleted and inaccessible items, assigns composite identifiers, and hands a
// prepared [PageCommit] to a [CommitSink] for atomic application. The engine
// never touches cache or lineup state itself; everything it produces is pure
// data, so the sink can apply or discard a whole page in one step.
//
// Fetch outcomes are reported via [Update] channels for non-blocking status
// reporting to CLI/UI layers.
package tasks
