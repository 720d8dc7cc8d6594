package mongostore

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gopherai-chat/internal/model"
)

// schemaVersion is written on every document this package creates.
// Version 0 (no field) documents were written with ISO-8601 string
// timestamps and may lack title and created_at on sessions.
const schemaVersion = 1

// Read-time defaults for version 0 documents:
//
//	session.title       "New Chat"
//	session.created_at  updated_at, else now
//	session.updated_at  created_at, else now; never before created_at
//	message.timestamp   zero time
//	file.uploaded_at    zero time
func normalizeSession(doc bson.M, now time.Time) model.Session {
	s := model.Session{
		ID:    toString(doc["id"]),
		Title: toString(doc["title"]),
	}
	if s.Title == "" {
		s.Title = model.DefaultSessionTitle
	}

	created, hasCreated := toTime(doc["created_at"])
	updated, hasUpdated := toTime(doc["updated_at"])
	switch {
	case hasCreated && hasUpdated:
	case hasUpdated:
		created = updated
	case hasCreated:
		updated = created
	default:
		created, updated = now, now
	}
	if updated.Before(created) {
		updated = created
	}
	s.CreatedAt = created
	s.UpdatedAt = updated
	return s
}

func normalizeMessage(doc bson.M) model.Message {
	m := model.Message{
		ID:        toString(doc["id"]),
		SessionID: toString(doc["session_id"]),
		Role:      toString(doc["role"]),
		Content:   toString(doc["content"]),
		Files:     toStrings(doc["files"]),
	}
	m.Timestamp, _ = toTime(doc["timestamp"])
	return m
}

func normalizeFile(doc bson.M) model.File {
	f := model.File{
		ID:          toString(doc["id"]),
		Filename:    toString(doc["filename"]),
		Path:        toString(doc["path"]),
		ContentType: toString(doc["content_type"]),
		Size:        toInt64(doc["size"]),
	}
	f.UploadedAt, _ = toTime(doc["uploaded_at"])
	return f
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC(), true
	case time.Time:
		return t.UTC(), true
	case string:
		raw := strings.TrimSpace(t)
		for _, layout := range isoLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toStrings(v any) []string {
	var items []any
	switch t := v.(type) {
	case primitive.A:
		items = t
	case []any:
		items = t
	case []string:
		return t
	default:
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
