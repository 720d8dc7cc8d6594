package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gopherai-chat/internal/model"
)

const (
	sessionsCollection = "sessions"
	messagesCollection = "messages"
	filesCollection    = "files"
)

// EnsureIndexes creates the lookup and sort indexes used by the stores.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		sessionsCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		filesCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes failed: %w", name, err)
		}
	}
	return nil
}

type SessionStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{col: db.Collection(sessionsCollection), now: time.Now}
}

func (s *SessionStore) Create(ctx context.Context, session *model.Session) error {
	doc := bson.M{
		"id":             session.ID,
		"title":          session.Title,
		"created_at":     session.CreatedAt,
		"updated_at":     session.UpdatedAt,
		"schema_version": schemaVersion,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) ListRecent(ctx context.Context, limit int) ([]model.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find sessions failed: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sessions failed: %w", err)
	}

	now := s.now().UTC()
	sessions := make([]model.Session, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, normalizeSession(doc, now))
	}
	return sessions, nil
}

// Touch is one upsert: updated_at is always set, the remaining fields only on insert.
func (s *SessionStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{"updated_at": at},
		"$setOnInsert": bson.M{
			"title":          model.DefaultSessionTitle,
			"created_at":     at,
			"schema_version": schemaVersion,
		},
	}
	_, err := s.col.UpdateOne(ctx, bson.M{"id": sessionID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("touch session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"id": sessionID}); err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

type MessageStore struct {
	col *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{col: db.Collection(messagesCollection)}
}

func (s *MessageStore) Create(ctx context.Context, message *model.Message) error {
	doc := bson.M{
		"id":             message.ID,
		"session_id":     message.SessionID,
		"role":           message.Role,
		"content":        message.Content,
		"timestamp":      message.Timestamp,
		"files":          message.Files,
		"schema_version": schemaVersion,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message failed: %w", err)
	}
	return nil
}

func (s *MessageStore) ListBySessionID(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.col.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages failed: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages failed: %w", err)
	}

	messages := make([]model.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, normalizeMessage(doc))
	}
	return messages, nil
}

func (s *MessageStore) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("delete messages failed: %w", err)
	}
	return nil
}

type FileStore struct {
	col *mongo.Collection
}

func NewFileStore(db *mongo.Database) *FileStore {
	return &FileStore{col: db.Collection(filesCollection)}
}

func (s *FileStore) Create(ctx context.Context, file *model.File) error {
	doc := bson.M{
		"id":             file.ID,
		"filename":       file.Filename,
		"path":           file.Path,
		"content_type":   file.ContentType,
		"size":           file.Size,
		"uploaded_at":    file.UploadedAt,
		"schema_version": schemaVersion,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert file record failed: %w", err)
	}
	return nil
}

func (s *FileStore) GetByID(ctx context.Context, fileID string) (*model.File, error) {
	var doc bson.M
	err := s.col.FindOne(ctx, bson.M{"id": fileID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file record failed: %w", err)
	}
	file := normalizeFile(doc)
	return &file, nil
}
