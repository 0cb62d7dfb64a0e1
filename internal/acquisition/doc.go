// Package acquisition runs the long-lived loop that turns sensor lines into
// persisted Summary Records.
//
// One iteration:
//
//	┌─ link not connected? ── Open ── fail ──► wait backoff ──► next iteration
//	│
//	└─ ReadLine ─┬─ timeout ───────────────────────────────────► next iteration
//	             ├─ link lost ── log ──────────────────────────► next iteration (reopens)
//	             └─ line ── Parse ─┬─ malformed ── log, drop ──► next iteration
//	                               └─ Ingest ── MaybeFlush ─┬─ nothing ──► next iteration
//	                                                        └─ record ── Append ─┬─ fail ── log, drop
//	                                                                              └─ ok ── Forward
//
// Transport and data errors never stop the loop. Run returns only when its
// context is cancelled, after closing the link.
//
// # Thread Safety
//
// Run must be called once, from one goroutine. That goroutine alone touches
// the aggregation window and writes to the store. Other goroutines observe
// the loop through the store, the link's State and the metrics collector.
package acquisition
