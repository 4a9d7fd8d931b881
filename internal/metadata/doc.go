// Package metadata defines the in-memory representation of an audio file's
// tag set. Values are tagged variants (scalar, numeric, string list,
// timestamp) with explicit per-variant comparison semantics so the rest of
// the system never branches on runtime types.
package metadata
