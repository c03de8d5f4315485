package upstream

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/domain"
)

type roleResponse struct {
	Role string `json:"role"`
}

// IdentityClient resolves a user's organisational role.
type IdentityClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewIdentityClient builds a client for cfg.AuthServiceURL.
func NewIdentityClient(cfg config.UpstreamConfig, logger *zap.Logger) *IdentityClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityClient{
		http:   newRestyClient(cfg.AuthServiceURL, cfg),
		logger: logger.Named("identity_client"),
	}
}

// GetUserRole returns the role registered for userID.
func (c *IdentityClient) GetUserRole(ctx context.Context, userID string) (domain.Role, error) {
	var body roleResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetResult(&body).
		Get("/users/{id}/role")
	if err != nil {
		c.logger.Warn("identity lookup failed", zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("identity service: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{Service: "identity-service", Path: "/users/{id}/role", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	role, err := domain.ParseRole(body.Role)
	if err != nil {
		return "", fmt.Errorf("identity service: %w", err)
	}
	return role, nil
}
