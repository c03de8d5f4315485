package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository/memory"
	"github.com/spec-kit/workflow-service/internal/service"
	"github.com/spec-kit/workflow-service/internal/worker"
)

type okTickets struct{}

func (okTickets) AssignTicket(context.Context, string, string, domain.SupportLevel) error { return nil }
func (okTickets) UpdateStatus(context.Context, string, string) error                      { return nil }
func (okTickets) RecordEscalation(context.Context, string, domain.SupportLevel, domain.SupportLevel, string) error {
	return nil
}

type stubReconciler struct{ limit int }

func (s *stubReconciler) Run(_ context.Context, limit int) (*worker.Report, error) {
	s.limit = limit
	return &worker.Report{Cleared: []string{}, StillDirty: []string{}}, nil
}

type testServer struct {
	app        *fiber.App
	services   *service.Services
	tokens     *auth.TokenManager
	reconciler *stubReconciler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	metrics := observability.NewMetrics()
	services := service.New(service.Dependencies{
		Store:   memory.NewStore(),
		Tickets: okTickets{},
		Outbox:  outbox.NewMemoryQueue(),
		Metrics: metrics,
		Logger:  zap.NewNop(),
	})
	tokens := auth.NewTokenManager("test-secret", 5)
	rec := &stubReconciler{}

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("workflow-service", "test", metrics, nil),
		Workflow:       handlers.NewWorkflowHandler(services),
		Admin:          handlers.NewAdminHandler(services.Directory, rec, 25),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, services: services, tokens: tokens, reconciler: rec}
}

func (s *testServer) token(t *testing.T, subject string, kind domain.SubjectType, role domain.Role) string {
	t.Helper()
	var rolePtr *domain.Role
	if role != "" {
		rolePtr = &role
	}
	tok, _, err := s.tokens.GenerateToken(subject, kind, rolePtr)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func errorCode(payload map[string]any) string {
	errObj, _ := payload["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func (s *testServer) seed(t *testing.T) *domain.SupportGroup {
	t.Helper()
	ctx := context.Background()
	g, err := s.services.Directory.CreateGroup(ctx, service.CreateGroupInput{Name: "HQ floor 1", Building: "HQ", Floor: 1})
	require.NoError(t, err)
	for _, uid := range []string{"u-j1", "u-j2"} {
		_, err = s.services.Directory.AddMember(ctx, service.AddMemberInput{UserID: uid, GroupID: g.ID, Role: domain.RoleJunior})
		require.NoError(t, err)
	}
	return g
}

func TestWorkflowRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)
	status, payload := s.do(t, nethttp.MethodGet, "/workflow/claim/T-1/status", "", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))
}

func TestRouteTicketEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	svc := s.token(t, "ticket-service", domain.SubjectTypeService, "")

	status, payload := s.do(t, nethttp.MethodPost, "/workflow/route-ticket", svc,
		`{"ticket_id":"T-1","building":"HQ","floor":1,"priority":"HIGH"}`)
	require.Equal(t, nethttp.StatusCreated, status, payload)
	data := payload["data"].(map[string]any)
	state := data["state"].(map[string]any)
	assert.Equal(t, "ASSIGNED", state["status"])
	assert.Equal(t, false, data["sync_pending"])

	status, payload = s.do(t, nethttp.MethodPost, "/workflow/route-ticket", svc,
		`{"ticket_id":"T-1","building":"HQ","floor":1}`)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(payload))

	status, payload = s.do(t, nethttp.MethodPost, "/workflow/route-ticket", svc,
		`{"ticket_id":"T-2","building":"Annex","floor":9}`)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "GROUP_NOT_FOUND", errorCode(payload))

	user := s.token(t, "u-j1", domain.SubjectTypeUser, domain.RoleJunior)
	status, payload = s.do(t, nethttp.MethodPost, "/workflow/route-ticket", user,
		`{"ticket_id":"T-3","building":"HQ","floor":1}`)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(payload))
}

func TestClaimEndpointFirstClaimWins(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	svc := s.token(t, "ticket-service", domain.SubjectTypeService, "")

	status, _ := s.do(t, nethttp.MethodPost, "/workflow/open-ticket", svc, `{"ticket_id":"T-9","building":"HQ","floor":1}`)
	require.Equal(t, nethttp.StatusCreated, status)

	status, payload := s.do(t, nethttp.MethodGet, "/workflow/claim/T-9/status", svc, "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, false, payload["data"].(map[string]any)["claimed"])

	first := s.token(t, "u-j1", domain.SubjectTypeUser, domain.RoleJunior)
	second := s.token(t, "u-j2", domain.SubjectTypeUser, domain.RoleJunior)

	status, payload = s.do(t, nethttp.MethodPost, "/workflow/claim/T-9", first, "")
	require.Equal(t, nethttp.StatusOK, status, payload)
	status, payload = s.do(t, nethttp.MethodPost, "/workflow/claim/T-9", second, "")
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "ALREADY_CLAIMED", errorCode(payload))

	status, payload = s.do(t, nethttp.MethodGet, "/workflow/audit/T-9", first, "")
	require.Equal(t, nethttp.StatusOK, status)
	entries := payload["data"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "CLAIMED", entries[1].(map[string]any)["action"])
}

func TestEscalateTriggersAreScopedBySubject(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	svc := s.token(t, "sla-poller", domain.SubjectTypeService, "")
	user := s.token(t, "u-lead", domain.SubjectTypeUser, domain.RoleSenior)

	status, payload := s.do(t, nethttp.MethodPost, "/workflow/escalate/T-1", user, `{"trigger":"SLA"}`)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_AUTHORITY", errorCode(payload))

	status, payload = s.do(t, nethttp.MethodPost, "/workflow/escalate/T-1", svc, `{"trigger":"CRITICAL","is_critical":false}`)
	require.Equal(t, nethttp.StatusOK, status, payload)
	assert.Equal(t, true, payload["data"].(map[string]any)["skipped"])

	status, payload = s.do(t, nethttp.MethodPost, "/workflow/escalate/T-1", svc, `{"trigger":"LATER"}`)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))
}

func TestAdminRoutesRequireSupervisor(t *testing.T) {
	s := newTestServer(t)
	junior := s.token(t, "u-j1", domain.SubjectTypeUser, domain.RoleJunior)
	supervisor := s.token(t, "u-boss", domain.SubjectTypeUser, domain.RoleSupervisor)

	status, payload := s.do(t, nethttp.MethodPost, "/admin/groups", junior, `{"name":"HQ 1","building":"HQ","floor":1}`)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_AUTHORITY", errorCode(payload))

	status, payload = s.do(t, nethttp.MethodPost, "/admin/groups", supervisor, `{"name":"HQ 1","building":"HQ","floor":1}`)
	require.Equal(t, nethttp.StatusCreated, status, payload)
	groupID := int64(payload["data"].(map[string]any)["id"].(float64))
	assert.Positive(t, groupID)

	status, payload = s.do(t, nethttp.MethodPost, "/admin/groups/abc/members", supervisor, `{"user_id":"u1","role":"JUNIOR"}`)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))

	status, _ = s.do(t, nethttp.MethodPost, "/admin/reconcile", supervisor, "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, 25, s.reconciler.limit)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t)

	status, payload := s.do(t, nethttp.MethodGet, "/health/live", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", payload["status"])

	status, _ = s.do(t, nethttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, nethttp.StatusOK, status)

	status, payload = s.do(t, nethttp.MethodGet, "/nope", "", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(payload))
}
