// Package visibility turns raw per-run AI-response records into a
// cumulative competitive-visibility snapshot: aggregated competitors,
// share of voice, ranking with a Smart Top-N, a trend chart, a normalized
// mention feed and heuristic topic gaps.
//
// Every function except Service.Snapshot is pure and safe to call
// concurrently. Service.Snapshot performs the repository reads and then
// hands fully typed, default-filled values to the pure functions.
package visibility
