package textutil

import "strings"

// Similarity computes a 0..1 similarity score between two strings using
// token fingerprints, with an exact-match fast path after normalization.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return CosineSimilarity(NewFingerprint(na), NewFingerprint(nb))
}

// MatchArtistTitle combines artist and title similarity into one confidence
// score. Artist identity matters more than title phrasing, so the artist
// component carries the larger weight.
func MatchArtistTitle(queryArtist, queryTitle, candidateArtist, candidateTitle string) float64 {
	const (
		artistWeight = 0.6
		titleWeight  = 0.4
	)
	artistScore := Similarity(queryArtist, candidateArtist)
	titleScore := Similarity(queryTitle, candidateTitle)
	return artistWeight*artistScore + titleWeight*titleScore
}

// Normalize lowercases a string and collapses internal whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
