package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/domain"
)

// Ticket statuses written to the ticket content service.
const (
	TicketStatusInProgress = "IN_PROGRESS"
	TicketStatusReassigned = "REASSIGNED"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Service    string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d", e.Service, e.Path, e.StatusCode)
}

type assignmentRequest struct {
	AssignedTo      string `json:"assigned_to"`
	AssignedToLevel string `json:"assigned_to_level"`
	Status          string `json:"status"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type escalationRequest struct {
	FromLevel string `json:"from_level"`
	ToLevel   string `json:"to_level"`
	Reason    string `json:"reason,omitempty"`
}

// TicketClient writes assignment and escalation facts to the ticket content service.
type TicketClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewTicketClient builds a client for cfg.TicketServiceURL.
func NewTicketClient(cfg config.UpstreamConfig, logger *zap.Logger) *TicketClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketClient{
		http:   newRestyClient(cfg.TicketServiceURL, cfg),
		logger: logger.Named("ticket_client"),
	}
}

// AssignTicket records the assignee and its support level, moving the ticket to IN_PROGRESS.
func (c *TicketClient) AssignTicket(ctx context.Context, ticketID, userID string, level domain.SupportLevel) error {
	return c.send(ctx, resty.MethodPatch, "/tickets/{id}", ticketID, assignmentRequest{
		AssignedTo:      userID,
		AssignedToLevel: string(level),
		Status:          TicketStatusInProgress,
	})
}

// UpdateStatus sets the ticket status only.
func (c *TicketClient) UpdateStatus(ctx context.Context, ticketID, status string) error {
	return c.send(ctx, resty.MethodPatch, "/tickets/{id}", ticketID, statusRequest{Status: status})
}

// RecordEscalation posts an escalation record between two support levels.
func (c *TicketClient) RecordEscalation(ctx context.Context, ticketID string, from, to domain.SupportLevel, reason string) error {
	return c.send(ctx, resty.MethodPost, "/tickets/{id}/escalate", ticketID, escalationRequest{
		FromLevel: string(from),
		ToLevel:   string(to),
		Reason:    reason,
	})
}

func (c *TicketClient) send(ctx context.Context, method, path, ticketID string, body interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", ticketID).
		SetBody(body).
		Execute(method, path)
	if err != nil {
		c.logger.Warn("ticket service call failed",
			zap.String("method", method),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
		return fmt.Errorf("ticket service %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		c.logger.Warn("ticket service rejected call",
			zap.String("method", method),
			zap.String("ticket_id", ticketID),
			zap.Int("status_code", resp.StatusCode()))
		return &StatusError{Service: "ticket-service", Path: path, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func newRestyClient(baseURL string, cfg config.UpstreamConfig) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.RetryCount > 0 {
		client.SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(time.Second)
	}
	return client
}
