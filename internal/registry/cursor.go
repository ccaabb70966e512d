package registry

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// DecodeRunCursor parses a base64 "startedAtUnixNano|runID" cursor. An empty string yields nil.
func DecodeRunCursor(cursor string) (*RunCursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return &RunCursor{
		StartedAt: time.Unix(0, nanos).UTC(),
		RunID:     parts[1],
	}, nil
}

// EncodeRunCursor is the inverse of DecodeRunCursor
func EncodeRunCursor(cursor *RunCursor) string {
	raw := fmt.Sprintf("%d|%s", cursor.StartedAt.UnixNano(), cursor.RunID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}
