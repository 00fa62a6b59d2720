// Package identity derives the canonical event id shared by every source.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"kultuurivoog/internal/textnorm"
)

var timeSeparators = strings.NewReplacer(":", "", ".", "", " ", "")

// Generate returns the lowercase hex SHA-1 of
// title|date|venue|city|time with title, venue and city normalized and the
// time reduced to its digits (19:00 and 19.00 both become 1900).
func Generate(title, isoDate, venue, city, clock string) string {
	raw := strings.Join([]string{
		textnorm.Normalize(title),
		strings.TrimSpace(isoDate),
		textnorm.Normalize(venue),
		textnorm.Normalize(city),
		CompactTime(clock),
	}, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func CompactTime(clock string) string {
	return timeSeparators.Replace(strings.TrimSpace(clock))
}
