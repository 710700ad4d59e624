// Package persistence holds helpers shared by the store implementations.
package persistence

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"example.com/aura/internal/domain"
)

// ErrInvalidCursor is returned for tokens not produced by EncodeCursor.
var ErrInvalidCursor = errors.New("invalid cursor")

type cursorToken struct {
	CreatedAt int64  `json:"t"`
	ID        string `json:"id"`
}

// EncodeCursor turns a history position into an opaque page token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw, _ := json.Marshal(cursorToken{CreatedAt: c.CreatedAt.UnixNano(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a page token. An empty token means the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var t cursorToken
	if err := json.Unmarshal(raw, &t); err != nil || t.ID == "" || t.CreatedAt <= 0 {
		return nil, ErrInvalidCursor
	}
	return &domain.Cursor{CreatedAt: time.Unix(0, t.CreatedAt).UTC(), ID: t.ID}, nil
}
