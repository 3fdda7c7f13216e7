package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
)

// Topic suffixes for audit events. The producer prepends the configured
// prefix, so the wire topics look like "sovrane.auth.login".
const (
	topicLogin           = "auth.login"
	topicTokenRefreshed  = "auth.token.refreshed"
	topicTokenReuse      = "auth.token.reuse"
	topicMFAStateChanged = "auth.mfa.changed"
	topicLockout         = "auth.lockout"
	topicPasswordReset   = "auth.password.reset"
)

// eventEnvelope is the wire format shared by every audit event.
type eventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Payload   json.RawMessage `json:"payload"`
}

// AuditPublisher writes audit events to Kafka via the async producer.
// Publishing never blocks the calling use case beyond the enqueue.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
}

// NewAuditPublisher constructs a Kafka-backed audit publisher.
func NewAuditPublisher(producer *Producer, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, logger: logger}
}

// PublishLogin emits a login outcome event.
func (p *AuditPublisher) PublishLogin(ctx context.Context, event domain.LoginEvent) error {
	payload := struct {
		Identifier string  `json:"identifier"`
		Succeeded  bool    `json:"succeeded"`
		MFAPending bool    `json:"mfa_pending"`
		IPAddress  *string `json:"ip_address,omitempty"`
		UserAgent  *string `json:"user_agent,omitempty"`
	}{
		Identifier: event.Identifier,
		Succeeded:  event.Succeeded,
		MFAPending: event.MFAPending,
		IPAddress:  event.IPAddress,
		UserAgent:  event.UserAgent,
	}

	return p.publish(ctx, topicLogin, event.EventID, event.UserID, event.At, payload)
}

// PublishTokenRefreshed emits a refresh token rotation event.
func (p *AuditPublisher) PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error {
	payload := struct {
		OldTokenID string  `json:"old_token_id"`
		NewTokenID string  `json:"new_token_id"`
		IPAddress  *string `json:"ip_address,omitempty"`
	}{
		OldTokenID: event.OldTokenID,
		NewTokenID: event.NewTokenID,
		IPAddress:  event.IPAddress,
	}

	return p.publish(ctx, topicTokenRefreshed, event.EventID, event.UserID, event.At, payload)
}

// PublishTokenReuse emits a reuse detection event.
func (p *AuditPublisher) PublishTokenReuse(ctx context.Context, event domain.TokenReuseEvent) error {
	payload := struct {
		TokenID   string     `json:"token_id"`
		UsedAt    *time.Time `json:"used_at,omitempty"`
		RevokedAt *time.Time `json:"revoked_at,omitempty"`
	}{
		TokenID:   event.TokenID,
		UsedAt:    event.UsedAt,
		RevokedAt: event.RevokedAt,
	}

	return p.publish(ctx, topicTokenReuse, event.EventID, event.UserID, event.At, payload)
}

// PublishMFAStateChanged emits a second-factor state change event.
func (p *AuditPublisher) PublishMFAStateChanged(ctx context.Context, event domain.MFAStateChangedEvent) error {
	payload := struct {
		Type            string `json:"type"`
		Enabled         bool   `json:"enabled"`
		SessionsRevoked int    `json:"sessions_revoked"`
	}{
		Type:            event.Type,
		Enabled:         event.Enabled,
		SessionsRevoked: event.SessionsRevoked,
	}

	return p.publish(ctx, topicMFAStateChanged, event.EventID, event.UserID, event.At, payload)
}

// PublishLockout emits an MFA attempt limit event.
func (p *AuditPublisher) PublishLockout(ctx context.Context, event domain.LockoutEvent) error {
	payload := struct {
		Method string `json:"method"`
	}{Method: event.Method}

	return p.publish(ctx, topicLockout, event.EventID, event.UserID, event.At, payload)
}

// PublishPasswordReset emits a completed password reset event.
func (p *AuditPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	payload := struct {
		SessionsRevoked int `json:"sessions_revoked"`
	}{SessionsRevoked: event.SessionsRevoked}

	return p.publish(ctx, topicPasswordReset, event.EventID, event.UserID, event.At, payload)
}

func (p *AuditPublisher) publish(ctx context.Context, eventType, eventID, userID string, at time.Time, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	envelope := eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: at.UTC(),
		Version:   "1.0",
		Payload:   raw,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case p.producer.Producer().Input() <- msg:
		p.logger.Debug("audit event enqueued",
			zap.String("event_type", eventType),
			zap.String("event_id", eventID),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s event: %w", eventType, ctx.Err())
	}
}

var _ port.AuditPublisher = (*AuditPublisher)(nil)
