package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/service"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

const defaultActivityWindow = 24 * time.Hour

// WorkflowHandler exposes the routing, claim, reassignment and escalation endpoints.
type WorkflowHandler struct {
	services *service.Services
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(services *service.Services) *WorkflowHandler {
	return &WorkflowHandler{services: services}
}

// RouteTicket POST /workflow/route-ticket.
func (h *WorkflowHandler) RouteTicket(c *fiber.Ctx) error {
	var req dto.RouteTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	result, err := h.services.Routing.Route(c.UserContext(), service.RouteInput{
		TicketID:    strings.TrimSpace(req.TicketID),
		Building:    strings.TrimSpace(req.Building),
		Floor:       req.Floor,
		Priority:    req.Priority,
		PerformedBy: performedBy(c),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": transitionResponse(result)})
}

// OpenTicket POST /workflow/open-ticket.
func (h *WorkflowHandler) OpenTicket(c *fiber.Ctx) error {
	var req dto.OpenTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	result, err := h.services.Routing.Open(c.UserContext(), service.OpenInput{
		TicketID:    strings.TrimSpace(req.TicketID),
		Building:    strings.TrimSpace(req.Building),
		Floor:       req.Floor,
		PerformedBy: performedBy(c),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": transitionResponse(result)})
}

// GetRoutingState GET /workflow/ticket/:ticketId/routing.
func (h *WorkflowHandler) GetRoutingState(c *fiber.Ctx) error {
	state, err := h.services.Routing.GetRoutingState(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stateResponse(state)})
}

// GetGroupQueue GET /workflow/group/:groupId/queue.
func (h *WorkflowHandler) GetGroupQueue(c *fiber.Ctx) error {
	groupID, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	states, err := h.services.Routing.GetGroupQueue(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stateResponses(states)})
}

// Claim POST /workflow/claim/:ticketId. Users claim for themselves; service
// callers name the claimant in the body.
func (h *WorkflowHandler) Claim(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	userID := p.SubjectID
	if p.SubjectType == domain.SubjectTypeService {
		var req dto.ClaimRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidPayload()
		}
		userID = strings.TrimSpace(req.UserID)
		if userID == "" {
			return apperrors.NewValidationError("user_id required", nil)
		}
	}
	result, err := h.services.Claims.Claim(c.UserContext(), c.Params("ticketId"), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(result)})
}

// ClaimStatus GET /workflow/claim/:ticketId/status.
func (h *WorkflowHandler) ClaimStatus(c *fiber.Ctx) error {
	status, err := h.services.Claims.ClaimStatus(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClaimStatusResponse{
		TicketID:         status.TicketID,
		Claimed:          status.Claimed,
		Status:           status.Status,
		AssignedMemberID: status.AssignedMemberID,
	}})
}

// Unclaimed GET /workflow/group/:groupId/unclaimed.
func (h *WorkflowHandler) Unclaimed(c *fiber.Ctx) error {
	groupID, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	states, err := h.services.Claims.Unclaimed(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stateResponses(states)})
}

// Reassign POST /workflow/reassign/:ticketId.
func (h *WorkflowHandler) Reassign(c *fiber.Ctx) error {
	p, err := userPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if req.TargetMemberID <= 0 {
		return apperrors.NewValidationError("target_member_id required", nil)
	}
	result, err := h.services.Reassignment.Reassign(c.UserContext(), service.ReassignInput{
		TicketID:       c.Params("ticketId"),
		ActorID:        p.SubjectID,
		ActorRole:      p.RoleOrEmpty(),
		TargetMemberID: req.TargetMemberID,
		Reason:         strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(result)})
}

// ReassignTargets GET /workflow/reassign/targets?group_id=&role=.
func (h *WorkflowHandler) ReassignTargets(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	groupID, err := queryID(c, "group_id")
	if err != nil {
		return err
	}
	if groupID == nil {
		return apperrors.NewValidationError("group_id required", nil)
	}
	role := domain.Role(c.Query("role"))
	if role == "" {
		role = p.RoleOrEmpty()
	}
	if role == "" {
		return apperrors.NewValidationError("role required", nil)
	}
	members, err := h.services.Reassignment.Targets(c.UserContext(), *groupID, role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponses(members)})
}

// Escalate POST /workflow/escalate/:ticketId. Automatic triggers are accepted
// from service callers only.
func (h *WorkflowHandler) Escalate(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	trigger, err := domain.ParseTrigger(string(req.Trigger))
	if err != nil {
		return apperrors.NewValidationError("unknown escalation trigger", map[string]any{"trigger": req.Trigger})
	}
	if trigger.Automatic() && p.SubjectType != domain.SubjectTypeService {
		return apperrors.NewInsufficientAuthority("automatic triggers are reserved for internal services",
			map[string]any{"trigger": trigger})
	}

	ctx := c.UserContext()
	ticketID := c.Params("ticketId")
	var result *service.TransitionResult
	switch {
	case trigger == domain.TriggerCritical && req.IsCritical != nil:
		result, err = h.services.Escalation.EscalateIfCritical(ctx, ticketID, *req.IsCritical)
	case trigger == domain.TriggerSLA && req.SLABreached != nil:
		result, err = h.services.Escalation.EscalateOnSLABreach(ctx, ticketID, *req.SLABreached)
	case trigger == domain.TriggerReopenCount && req.ReopenCount != nil:
		result, err = h.services.Escalation.EscalateOnReopenCount(ctx, ticketID, *req.ReopenCount)
	default:
		input := service.EscalateInput{
			TicketID: ticketID,
			Trigger:  trigger,
			Reason:   strings.TrimSpace(req.Reason),
		}
		if p.SubjectType == domain.SubjectTypeUser {
			input.ActorID = p.SubjectID
			input.ActorRole = p.RoleOrEmpty()
		}
		result, err = h.services.Escalation.Escalate(ctx, input)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(result)})
}

// EscalationHistory GET /workflow/escalate/:ticketId/history.
func (h *WorkflowHandler) EscalationHistory(c *fiber.Ctx) error {
	entries, err := h.services.Escalation.EscalationHistory(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": logResponses(entries)})
}

// EscalationPath GET /workflow/group/:groupId/escalation-path.
func (h *WorkflowHandler) EscalationPath(c *fiber.Ctx) error {
	groupID, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	rules, err := h.services.Escalation.EscalationPath(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponses(rules)})
}

// AuditTrail GET /workflow/audit/:ticketId.
func (h *WorkflowHandler) AuditTrail(c *fiber.Ctx) error {
	entries, err := h.services.Audit.AuditTrail(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": logResponses(entries)})
}

// RecentActivity GET /workflow/activity/recent?since=&limit=.
func (h *WorkflowHandler) RecentActivity(c *fiber.Ctx) error {
	since := time.Now().Add(-defaultActivityWindow)
	if parsed := parseTime(c.Query("since")); parsed != nil {
		since = *parsed
	}
	entries, err := h.services.Audit.RecentActivity(c.UserContext(), since, parseIntQuery(c, "limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": logResponses(entries)})
}

// MemberActivity GET /workflow/member/:memberId/activity?limit=.
func (h *WorkflowHandler) MemberActivity(c *fiber.Ctx) error {
	memberID, err := paramID(c, "memberId")
	if err != nil {
		return err
	}
	entries, err := h.services.Audit.MemberActivity(c.UserContext(), memberID, parseIntQuery(c, "limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": logResponses(entries)})
}

// GroupActivity GET /workflow/group/:groupId/activity?limit=.
func (h *WorkflowHandler) GroupActivity(c *fiber.Ctx) error {
	groupID, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	entries, err := h.services.Audit.GroupActivity(c.UserContext(), groupID, parseIntQuery(c, "limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": logResponses(entries)})
}
