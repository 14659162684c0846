// package store owns all client state: the entity cache, every registered
// lineup, and the playback queue.
//
// All mutation funnels through [Store.Dispatch] or a playback method, each of
// which holds the store mutex for its whole duration. Fetches run on
// background goroutines but land through [Store.CommitPage] under the same
// mutex, so every page is applied atomically: cache population strictly
// precedes lineup publication, and a page whose fetch was cancelled by a
// reset never writes anything.
package store
