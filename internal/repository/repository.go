package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/google/uuid"
)

var ErrEventNotFound = errors.New("outbox event not found")

const EventTypeOrderStatusChanged = "OrderStatusChanged"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string // order id, used as the kafka key
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type OutboxRepository interface {
	RecordStatusChange(ctx context.Context, change domain.StatusChange) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
	RunMigrations(*Credentials) error
	Close() error
}
