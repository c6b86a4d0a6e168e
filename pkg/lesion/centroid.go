// Package lesion provides the per-lesion building blocks: coordinate parsing,
// modality classification and patch extraction.
package lesion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lesionpatch/internal/models"
)

// ErrMalformedCoordinate is returned for coordinate records that are not
// exactly three space-separated integers.
var ErrMalformedCoordinate = errors.New("malformed coordinate record")

// ParseCentroid converts a raw "<i> <j> <k>" record into a Centroid, mapping
// i to X, j to Y and k to Z. Only a trailing line ending is stripped; any
// other stray space yields an empty token and fails.
func ParseCentroid(raw string) (models.Centroid, error) {
	tokens := strings.Split(strings.TrimRight(raw, "\r\n"), " ")
	if len(tokens) != 3 {
		return models.Centroid{}, fmt.Errorf("%w: %q has %d tokens, expected 3", ErrMalformedCoordinate, raw, len(tokens))
	}

	var coords [3]int
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return models.Centroid{}, fmt.Errorf("%w: %q: %v", ErrMalformedCoordinate, raw, err)
		}
		coords[i] = v
	}

	return models.Centroid{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// ParseCentroidBytes is ParseCentroid for byte-encoded records.
func ParseCentroidBytes(raw []byte) (models.Centroid, error) {
	return ParseCentroid(string(raw))
}
