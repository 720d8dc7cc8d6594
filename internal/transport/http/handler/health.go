package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gopherai-chat/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Root is the liveness probe.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "AI Chatbot API"})
}

// Check reports every configured dependency; unconfigured ones are omitted.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	allOK := true
	record := func(name string, status dependencyStatus) {
		deps[name] = status
		allOK = allOK && status.OK
	}

	if h.app.Mongo != nil {
		record("mongo", h.checkMongo(ctx))
	}
	if h.app.MySQL != nil {
		record("mysql", h.checkMySQL(ctx))
	}
	if h.app.Redis != nil {
		record("redis", h.checkRedis(ctx))
	}
	if h.app.MQConn != nil {
		record("rabbitmq", h.checkRabbitMQ())
	}
	record("llm", h.checkLLM())

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":          h.app.Config.App.Name,
		"env":          h.app.Config.App.Env,
		"storage":      h.app.Config.Storage.Backend,
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": deps,
	})
}

func (h *HealthHandler) checkMongo(ctx context.Context) dependencyStatus {
	if err := h.app.Mongo.Ping(ctx, readpref.Primary()); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}

// checkLLM only reports whether a credential is present; no upstream call is made.
func (h *HealthHandler) checkLLM() dependencyStatus {
	if err := h.app.Gateway.CheckCredential(); err != nil {
		return dependencyStatus{OK: true, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}
