// Package domain implements the geocode reconciliation core: it takes the
// raw answers that several commercial geocoding providers gave for the same
// address, normalizes them into a common Place shape, scores each against
// the original input, and reduces them to the small set of mutually
// corroborating candidates worth showing a user.
//
// # Entity types
//
// Every query targets one entity type: a full street address, a city, a
// county, a road intersection, or a neighborhood. The entity type is
// inferred from whichever address components the caller supplied (see
// [FormatComponents]) and drives both provider confirmation rules and the
// similarity threshold a candidate must clear.
//
// # Confirmation
//
// A provider "confirms" a response when its own classification of the
// result matches the entity type we asked for. Google tags results with a
// types list (locality, administrative_area_level_2, street_address, ...);
// Bing tags resources with an entityType plus a confidence grade. A
// response that is not confirmed never reaches the reducer.
//
// # Scoring
//
// The scorer rebuilds a token string from the input components and another
// from the normalized response, in the same fixed field order on both
// sides, and compares them with an edit-distance ratio in [0, 1]. County
// suffixes ("County", "Parish", "Borough", ...) and punctuation are
// stripped first so that providers phrasing the same place differently do
// not read as mismatches. Acceptance thresholds vary by entity type:
// street addresses must match tightly, intersections and cities loosely.
//
// # Reduction
//
// The reducer keeps at most one candidate per provider engine, ordered by
// score, and stops accepting as soon as the relative score drop between
// consecutive candidates exceeds a cutoff — past that cliff the remaining
// answers are presumed unreliable.
//
// # Staleness
//
// Cached lookups are gated by [RefreshPolicy]: an address whose stored
// responses were never confirmed may be retried once it is old enough,
// while a known-bad address that providers consistently confirmed (or a
// fresh one) is not re-queried, to avoid hammering paid APIs.
//
// The package is pure: all network and storage I/O lives in the adapter
// and store packages.
package domain
