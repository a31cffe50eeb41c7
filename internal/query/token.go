package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type offsetToken struct {
	Offset int64 `json:"offset"`
}

// EncodeOffsetToken builds the opaque continuation token used by sources
// that page with LIMIT/OFFSET.
func EncodeOffsetToken(offset int64) string {
	raw, _ := json.Marshal(offsetToken{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeOffsetToken accepts an empty token as offset zero.
func DecodeOffsetToken(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("decode continuation token: %w", err)
	}
	var decoded offsetToken
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return 0, fmt.Errorf("decode continuation token: %w", err)
	}
	if decoded.Offset < 0 {
		return 0, fmt.Errorf("decode continuation token: negative offset %d", decoded.Offset)
	}
	return decoded.Offset, nil
}
