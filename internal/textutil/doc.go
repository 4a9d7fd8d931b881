// Package textutil provides text normalization, genre canonicalization, and
// token-fingerprint similarity scoring used to compare metadata candidates
// against queries and existing tags.
package textutil
