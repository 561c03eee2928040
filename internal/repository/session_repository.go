package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"balance-api/internal/models"
)

// SessionRepository persists in-progress admin wizard sessions. Sessions are
// keyed by chat and expire on their own; Get returns nil when no session exists.
type SessionRepository interface {
	Get(ctx context.Context, chatID string) (*models.WizardSession, error)
	Save(ctx context.Context, session *models.WizardSession) error
	Delete(ctx context.Context, chatID string) error
}

type sessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository creates a Redis-backed wizard session store.
func NewSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	return &sessionRepository{
		client: client,
		ttl:    ttl,
	}
}

const sessionPrefix = "wizard:"

func (r *sessionRepository) Get(ctx context.Context, chatID string) (*models.WizardSession, error) {
	payload, err := r.client.Get(ctx, sessionPrefix+chatID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, models.NewTransientError("get session", err)
	}

	var session models.WizardSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", chatID, err)
	}
	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *models.WizardSession) error {
	session.UpdatedAt = time.Now()

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ChatID, err)
	}

	if err := r.client.Set(ctx, sessionPrefix+session.ChatID, payload, r.ttl).Err(); err != nil {
		return models.NewTransientError("save session", err)
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, chatID string) error {
	if err := r.client.Del(ctx, sessionPrefix+chatID).Err(); err != nil {
		return models.NewTransientError("delete session", err)
	}
	return nil
}
