// Package jws decodes the claims of compact JWS tokens without verifying
// their signature.
//
// App Store Server Notifications arrive as compact JWS strings
// (header.claims.signature). The relay only reads the claims segment; the
// header and signature segments are ignored. Callers that need authenticity
// must verify the x5c chain separately.
package jws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned for any token whose claims cannot be read:
// too few segments, bad base64, bad JSON or JSON that is not an object.
var ErrMalformedToken = errors.New("jws: malformed token")

// minSegments is the number of dot-separated segments in a compact JWS.
const minSegments = 3

// segmentParser decodes base64url segments, padding them to a multiple of 4
// before decoding. It is safe for concurrent use.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// stdToURL maps the standard base64 alphabet onto the URL-safe one so both
// encodings are accepted.
var stdToURL = strings.NewReplacer("+", "-", "/", "_")

// Decode parses the claims segment of token as JSON into dst. The claims
// must be a JSON object; null, arrays and scalars are rejected.
//
// Tokens with more than three segments are accepted; only the second segment
// is read. All failures wrap ErrMalformedToken.
func Decode(token string, dst any) error {
	raw, err := ClaimsBytes(token)
	if err != nil {
		return err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: claims are not a JSON object", ErrMalformedToken)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: claims are not valid JSON: %v", ErrMalformedToken, err)
	}
	return nil
}

// DecodeMap parses the claims segment of token into a generic map.
func DecodeMap(token string) (map[string]any, error) {
	var claims map[string]any
	if err := Decode(token, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ClaimsBytes returns the base64-decoded claims segment of token.
func ClaimsBytes(token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) < minSegments {
		return nil, fmt.Errorf("%w: expected %d segments, got %d", ErrMalformedToken, minSegments, len(parts))
	}

	raw, err := segmentParser.DecodeSegment(stdToURL.Replace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: claims segment is not valid base64: %v", ErrMalformedToken, err)
	}
	return raw, nil
}
