package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"gopherai-chat/internal/ai"
	"gopherai-chat/internal/app"
	"gopherai-chat/internal/cache"
	"gopherai-chat/internal/config"
	"gopherai-chat/internal/observability"
	mongoClient "gopherai-chat/internal/platform/mongo"
	mysqlClient "gopherai-chat/internal/platform/mysql"
	rabbitmqClient "gopherai-chat/internal/platform/rabbitmq"
	redisClient "gopherai-chat/internal/platform/redis"
	"gopherai-chat/internal/repository"
	"gopherai-chat/internal/repository/memory"
	"gopherai-chat/internal/repository/mongostore"
	"gopherai-chat/internal/storage"
)

// App owns every process-wide resource. Nothing here is global; Close
// releases what New opened.
type App struct {
	Config *config.Config
	Mongo  *mongo.Client
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Events *rabbitmqClient.EventPublisher

	Uploads *storage.LocalDisk
	Gateway ai.Gateway

	Conversations *app.ConversationService
	Files         *app.FileService
	Chat          *app.ChatService

	StartedAt time.Time
}

type Option func(*options)

type options struct {
	gateway ai.Gateway
}

// WithGateway replaces the configured LLM provider.
func WithGateway(gateway ai.Gateway) Option {
	return func(o *options) { o.gateway = gateway }
}

func New(ctx context.Context, opts ...Option) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	slog.SetDefault(observability.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format))
	return NewWithConfig(ctx, cfg, opts...)
}

func NewWithConfig(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Uploads, err = storage.NewLocalDisk(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}

	sessions, messages, files, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	convOpts := []app.ConversationOption{}
	a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	if a.Redis != nil {
		ttl := time.Duration(cfg.Redis.HistoryTTLSeconds) * time.Second
		convOpts = append(convOpts, app.WithHistoryCache(cache.NewHistoryCache(a.Redis, ttl)))
	}

	a.MQConn, err = rabbitmqClient.New(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}
	if a.MQConn != nil {
		a.Events, err = rabbitmqClient.NewEventPublisher(a.MQConn, cfg.RabbitMQ.EventExchange)
		if err != nil {
			return nil, err
		}
		convOpts = append(convOpts, app.WithEventPublisher(a.Events))
	}

	a.Gateway = o.gateway
	if a.Gateway == nil {
		a.Gateway = newGateway(cfg.LLM)
	}
	if err := a.Gateway.CheckCredential(); err != nil {
		slog.Warn("llm credential missing, chat requests will fail", "provider", cfg.LLM.Provider)
	}

	a.Conversations = app.NewConversationService(sessions, messages, convOpts...)
	a.Files = app.NewFileService(files, a.Uploads)
	a.Chat = app.NewChatService(a.Conversations, a.Files, a.Gateway)

	slog.Info("application ready",
		"storage", cfg.Storage.Backend,
		"upload_dir", a.Uploads.Dir(),
		"llm_provider", cfg.LLM.Provider,
		"history_cache", a.Redis != nil,
		"event_feed", a.Events != nil,
	)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (app.SessionStore, app.MessageStore, app.FileStore, error) {
	switch a.Config.Storage.Backend {
	case config.BackendMongo:
		client, err := mongoClient.New(ctx, a.Config.Mongo.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		a.Mongo = client
		db := client.Database(a.Config.Mongo.DB)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			return nil, nil, nil, err
		}
		return mongostore.NewSessionStore(db), mongostore.NewMessageStore(db), mongostore.NewFileStore(db), nil

	case config.BackendMySQL:
		db, err := mysqlClient.New(ctx, a.Config.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		a.MySQL = db
		if err := repository.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
		return repository.NewSessionRepository(db), repository.NewMessageRepository(db), repository.NewFileRepository(db), nil

	default:
		return memory.NewSessionStore(), memory.NewMessageStore(), memory.NewFileStore(), nil
	}
}

func newGateway(cfg config.LLMConfig) ai.Gateway {
	if cfg.Provider == config.ProviderOpenAI {
		return ai.NewOpenAIGateway(cfg.BaseURL, cfg.APIKey, cfg.Model)
	}
	return ai.NewGeminiGateway(cfg.APIKey, cfg.Model, "")
}

func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		errs = append(errs, a.MQConn.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.Mongo.Disconnect(ctx))
		cancel()
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
