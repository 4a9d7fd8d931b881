// Package conflict detects disagreements between current and candidate
// metadata fields and resolves them through policy recommendations,
// remembered preferences, batch rules, and interactive prompts.
package conflict
