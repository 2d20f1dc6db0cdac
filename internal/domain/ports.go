package domain

import (
	"context"
	"time"
)

// CompletionService: узкий интерфейс внешнего chat-completion провайдера.
type CompletionService interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Session: серверная запись об активной сессии.
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
}

// SessionStore хранит активные сессии. Удаление записи инвалидирует сессию.
type SessionStore interface {
	Put(ctx context.Context, session Session) error
	// Get возвращает сессию или ErrNotFound (в том числе для истёкших).
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	FailedCount     int
	OldestPendingAt time.Time
}
