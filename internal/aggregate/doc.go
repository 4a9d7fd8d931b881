// Package aggregate merges candidate metadata from multiple independent
// sources into one ranked field map, weighting list fields by source
// confidence and taking primary scalars from the best qualifying result.
package aggregate
