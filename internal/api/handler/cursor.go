package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fixmate/repair-be/internal/repair"
)

// EncodeRepairCursor packs a pagination position into an opaque token.
// The token is base64("<created_at unixnano>|<repair_id>").
func EncodeRepairCursor(cursor *repair.Cursor) string {
	if cursor == nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeRepairCursor reverses EncodeRepairCursor. An empty token means
// first page.
func DecodeRepairCursor(token string) (*repair.Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("malformed cursor")
	}

	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor timestamp: %w", err)
	}

	return &repair.Cursor{
		CreatedAt: time.Unix(0, nanos),
		ID:        parts[1],
	}, nil
}
