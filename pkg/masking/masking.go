// Package masking turns sensitive identifiers into short, fixed-length tokens
// that are safe to put in logs, span attributes and metric labels.
package masking

import (
	"crypto/sha256"
	"encoding/base64"
)

// Length is the number of characters kept from the encoded digest.
const Length = 10

// Identifier returns the first Length characters of the base64 encoded SHA-256
// digest of v. The same input always yields the same token.
func Identifier(v string) string {
	sum := sha256.Sum256([]byte(v))
	return base64.StdEncoding.EncodeToString(sum[:])[:Length]
}

// CardNumber keeps only the last four characters of a card number and hides the
// rest. Numbers with four characters or fewer are hidden completely.
func CardNumber(number string) string {
	const visible = 4
	if len(number) <= visible {
		return "****"
	}
	return "************" + number[len(number)-visible:]
}
