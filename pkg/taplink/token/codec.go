// Package token generates the opaque strings embedded in NFC tag URIs.
package token

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// alphabet deliberately excludes delimiters and uppercase so tokens
	// survive URL encoding and case-folding NFC readers untouched.
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	// 16 characters over a 36-character alphabet is about 82 bits of
	// entropy, which makes collisions negligible at batch sizes of 10k.
	tokenLength = 16
)

// Codec generates resolution tokens and embeds them in resolvable URIs.
type Codec struct {
	// BaseURL is the public origin the tag URI points at, without a
	// trailing slash (e.g. "https://app.example.com").
	BaseURL string
}

// NewCodec creates a codec for the given public base URL
func NewCodec(baseURL string) *Codec {
	return &Codec{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Generate returns a fresh token: the optional prefix followed by 16
// random lowercase-alphanumeric characters from crypto/rand. The only
// failure mode is an exhausted system entropy source.
func (c *Codec) Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, tokenLength)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + id, nil
}

// URI returns the resolvable URI stored in the tag's NDEF payload
func (c *Codec) URI(token string) string {
	return c.BaseURL + "/t/" + token
}
