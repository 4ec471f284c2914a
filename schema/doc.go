// Package schema catalogs the fingerprint signal fields.
//
// The catalog records, for every known field, the value shapes collectors
// may emit, whether the field participates in the digest, and the numeric
// bounds that make a reading plausible. Validate checks an observation
// against the catalog and reports findings; findings are advisory and never
// block hashing, because the canonicalizer substitutes a deterministic
// sentinel for anything it cannot use.
//
// The catalog is fixed at build time. Hash relevance in particular is not
// configuration: two deployments disagreeing on which fields are hashed
// could never compare digests.
package schema
