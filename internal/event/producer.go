package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	pkgkafka "github.com/NipunKumar21/Encore-auth/pkg/kafka"
)

// Kafka topic constants for auth domain events.
const (
	TopicAccountRegistered      = "auth.account.registered"
	TopicTwoFactorCodeIssued    = "auth.account.2fa_code_issued"
	TopicFamilyRevoked          = "auth.token.family_revoked"
	TopicPasswordResetRequested = "auth.account.password_reset_requested"
	TopicPasswordChanged        = "auth.account.password_changed"
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// TwoFactorCodeIssuedData is the payload for a 2fa_code_issued event. The
// notification service delivers the code to the account email; the code never
// appears in an API response.
type TwoFactorCodeIssuedData struct {
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
	ExpiresAt   string `json:"expires_at"`
}

// FamilyRevokedData is the payload for a family_revoked event, emitted when
// replay of a rotated refresh token revokes an entire session family.
type FamilyRevokedData struct {
	AccountID     string `json:"account_id"`
	FamilyID      string `json:"family_id"`
	TokensRevoked int64  `json:"tokens_revoked"`
	Reason        string `json:"reason"`
}

// PasswordResetRequestedData is the payload for a password_reset_requested
// event. The notification service emails the reset link.
type PasswordResetRequestedData struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	ResetID   string `json:"reset_id"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// PasswordChangedData is the payload for a password_changed event.
type PasswordChangedData struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// Publisher is the event publishing interface consumed by the service layer.
type Publisher interface {
	PublishAccountRegistered(ctx context.Context, account *domain.Account) error
	PublishTwoFactorCodeIssued(ctx context.Context, account *domain.Account, challenge *domain.TwoFactorChallenge, code string) error
	PublishFamilyRevoked(ctx context.Context, accountID, familyID string, tokensRevoked int64, reason string) error
	PublishPasswordResetRequested(ctx context.Context, account *domain.Account, reset *domain.PasswordReset, token string) error
	PublishPasswordChanged(ctx context.Context, account *domain.Account) error
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, account *domain.Account) error {
	data := AccountRegisteredData{
		ID:        account.ID.String(),
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Role:      string(account.Role),
	}
	return p.publish(ctx, TopicAccountRegistered, account.ID.String(), data)
}

// PublishTwoFactorCodeIssued publishes a 2fa_code_issued event carrying the
// plaintext code for delivery.
func (p *Producer) PublishTwoFactorCodeIssued(ctx context.Context, account *domain.Account, challenge *domain.TwoFactorChallenge, code string) error {
	data := TwoFactorCodeIssuedData{
		AccountID:   account.ID.String(),
		Email:       account.Email,
		ChallengeID: challenge.ID.String(),
		Code:        code,
		ExpiresAt:   challenge.ExpiresAt.Format(time.RFC3339),
	}
	return p.publish(ctx, TopicTwoFactorCodeIssued, account.ID.String(), data)
}

// PublishFamilyRevoked publishes a family_revoked event.
func (p *Producer) PublishFamilyRevoked(ctx context.Context, accountID, familyID string, tokensRevoked int64, reason string) error {
	data := FamilyRevokedData{
		AccountID:     accountID,
		FamilyID:      familyID,
		TokensRevoked: tokensRevoked,
		Reason:        reason,
	}
	return p.publish(ctx, TopicFamilyRevoked, accountID, data)
}

// PublishPasswordResetRequested publishes a password_reset_requested event
// carrying the plaintext reset token for delivery.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, account *domain.Account, reset *domain.PasswordReset, token string) error {
	data := PasswordResetRequestedData{
		AccountID: account.ID.String(),
		Email:     account.Email,
		ResetID:   reset.ID.String(),
		Token:     token,
		ExpiresAt: reset.ExpiresAt.Format(time.RFC3339),
	}
	return p.publish(ctx, TopicPasswordResetRequested, account.ID.String(), data)
}

// PublishPasswordChanged publishes a password_changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, account *domain.Account) error {
	data := PasswordChangedData{
		AccountID: account.ID.String(),
		Email:     account.Email,
	}
	return p.publish(ctx, TopicPasswordChanged, account.ID.String(), data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}
