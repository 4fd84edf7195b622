package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/prakulphogat2922-ctrl/AleartECO/pkg/kafka"
	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/logger"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/domain"
)

// Event types published on the user topic.
const (
	UserRegistered = "user.registered"
	UserUpdated    = "user.updated"
	UserDeleted    = "user.deleted"
)

const (
	topicUsers    = "alearteco.users"
	aggregateType = "user"
	source        = "alearteco-backend"
)

// userPayload is the event body. It carries only the identity fields other
// services need; never the password hash.
type userPayload struct {
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	LoginProvider string     `json:"login_provider"`
	IsVerified    bool       `json:"is_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// Producer publishes user lifecycle events to Kafka.
type Producer struct {
	producer *pkgkafka.Producer
	logger   *slog.Logger
}

// NewProducer creates an event producer over the shared Kafka writer.
func NewProducer(p *pkgkafka.Producer, log *slog.Logger) *Producer {
	return &Producer{producer: p, logger: log}
}

// PublishUser emits a user lifecycle event keyed by the user's ID.
func (p *Producer) PublishUser(ctx context.Context, eventType string, u *domain.User) error {
	payload := userPayload{
		UserID:        u.ID,
		Email:         u.Email,
		Name:          u.Name,
		LoginProvider: u.LoginProvider,
		IsVerified:    u.IsVerified,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}

	evt, err := pkgkafka.NewEvent(eventType, u.ID, aggregateType, source, payload)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}

	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	return p.producer.Publish(ctx, topicUsers, evt)
}

// Ping reports broker connectivity for readiness checks.
func (p *Producer) Ping(ctx context.Context) error {
	return p.producer.Ping(ctx)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
