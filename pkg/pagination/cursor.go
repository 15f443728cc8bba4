package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the canonical, opaque pagination token (pre-encoding) with short field names to
// minimize payload size. It is serialized to minified JSON and encoded with URL-safe base64.
//
// Fields:
//   - v:   version of the cursor schema
//   - ds:  dataset fingerprint (the report set the series was resolved from)
//   - sel: selection key (org type, cluster, zone, branch, window, granularity)
//   - off: offset in points from the start of the series
//   - ps:  page size in points
//   - iat: issued-at timestamp (unix seconds)
type Cursor struct {
	V   int    `json:"v"`
	Ds  string `json:"ds"`
	Sel string `json:"sel"`
	Off int    `json:"off"`
	Ps  int    `json:"ps"`
	Iat int64  `json:"iat"`
}

// ErrInvalidCursor is returned for tokens that do not decode to a valid cursor.
var ErrInvalidCursor = errors.New("cursor: invalid token")

// EncodeCursor serializes and encodes the cursor as URL-safe base64 (without padding).
func EncodeCursor(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor decodes a URL-safe base64 token and parses the JSON cursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCursor)
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrInvalidCursor, err)
	}
	if err := validate(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &c, nil
}

// Matches reports whether the cursor was issued for the same dataset and selection.
func (c *Cursor) Matches(dataset, selection string) bool {
	return c.Ds == dataset && c.Sel == selection
}

// Fingerprint hashes the parts into a short stable token. Parts are joined
// with a separator that cannot appear in file paths or report IDs.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:12])
}

// validate performs structural checks and defaulting.
func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.Ds) == "" {
		return errors.New("cursor: ds (dataset fingerprint) required")
	}
	if strings.TrimSpace(c.Sel) == "" {
		return errors.New("cursor: sel (selection) required")
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	return nil
}

// NextOffset computes the next offset after returning n units.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}
