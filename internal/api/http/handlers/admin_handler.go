package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/service"
	"github.com/spec-kit/workflow-service/internal/worker"
)

// Reconciler replays queued ticket-service notifications.
type Reconciler interface {
	Run(ctx context.Context, limit int) (*worker.Report, error)
}

// AdminHandler manages the group directory, escalation rules and reconciliation.
type AdminHandler struct {
	directory  *service.DirectoryService
	reconciler Reconciler
	batchSize  int
}

// NewAdminHandler constructs handler.
func NewAdminHandler(directory *service.DirectoryService, reconciler Reconciler, batchSize int) *AdminHandler {
	return &AdminHandler{directory: directory, reconciler: reconciler, batchSize: batchSize}
}

// CreateGroup POST /admin/groups.
func (h *AdminHandler) CreateGroup(c *fiber.Ctx) error {
	var req dto.CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	group, err := h.directory.CreateGroup(c.UserContext(), service.CreateGroupInput{
		Name:          strings.TrimSpace(req.Name),
		Building:      strings.TrimSpace(req.Building),
		Floor:         req.Floor,
		ParentGroupID: req.ParentGroupID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": groupResponse(group)})
}

// ListGroups GET /admin/groups?building=&include_inactive=.
func (h *AdminHandler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.directory.ListGroups(c.UserContext(), c.Query("building"), parseBoolQuery(c, "include_inactive", false))
	if err != nil {
		return err
	}
	items := make([]dto.GroupResponse, 0, len(groups))
	for i := range groups {
		items = append(items, *groupResponse(&groups[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetGroup GET /admin/groups/:groupId.
func (h *AdminHandler) GetGroup(c *fiber.Ctx) error {
	id, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	group, err := h.directory.GetGroup(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": groupResponse(group)})
}

// UpdateGroup PATCH /admin/groups/:groupId.
func (h *AdminHandler) UpdateGroup(c *fiber.Ctx) error {
	id, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	var req dto.UpdateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	group, err := h.directory.UpdateGroup(c.UserContext(), id, service.UpdateGroupInput{
		Name:          req.Name,
		Building:      req.Building,
		Floor:         req.Floor,
		ParentGroupID: req.ParentGroupID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": groupResponse(group)})
}

// DeactivateGroup DELETE /admin/groups/:groupId.
func (h *AdminHandler) DeactivateGroup(c *fiber.Ctx) error {
	id, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	if err := h.directory.DeactivateGroup(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddMember POST /admin/groups/:groupId/members.
func (h *AdminHandler) AddMember(c *fiber.Ctx) error {
	groupID, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	var req dto.AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	member, err := h.directory.AddMember(c.UserContext(), service.AddMemberInput{
		UserID:      strings.TrimSpace(req.UserID),
		GroupID:     groupID,
		Role:        req.Role,
		CanAssign:   req.CanAssign,
		CanEscalate: req.CanEscalate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": memberResponse(member)})
}

// ListMembers GET /admin/groups/:groupId/members.
func (h *AdminHandler) ListMembers(c *fiber.Ctx) error {
	groupID, err := paramID(c, "groupId")
	if err != nil {
		return err
	}
	members, err := h.directory.ListMembers(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponses(members)})
}

// GetMember GET /admin/members/:memberId.
func (h *AdminHandler) GetMember(c *fiber.Ctx) error {
	id, err := paramID(c, "memberId")
	if err != nil {
		return err
	}
	member, err := h.directory.GetMember(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponse(member)})
}

// UpdateMemberStatus PATCH /admin/members/:memberId/status.
func (h *AdminHandler) UpdateMemberStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "memberId")
	if err != nil {
		return err
	}
	var req dto.UpdateMemberStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	member, err := h.directory.UpdateMemberStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponse(member)})
}

// CreateRule POST /admin/rules.
func (h *AdminHandler) CreateRule(c *fiber.Ctx) error {
	var req dto.CreateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	rule, err := h.directory.CreateRule(c.UserContext(), service.CreateRuleInput{
		SourceGroupID:   req.SourceGroupID,
		TargetGroupID:   req.TargetGroupID,
		Trigger:         req.TriggerType,
		DelayMinutes:    req.DelayMinutes,
		ReopenThreshold: req.ReopenThreshold,
		Priority:        req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// ListRules GET /admin/rules?source_group_id=.
func (h *AdminHandler) ListRules(c *fiber.Ctx) error {
	sourceID, err := queryID(c, "source_group_id")
	if err != nil {
		return err
	}
	rules, err := h.directory.ListRules(c.UserContext(), sourceID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponses(rules)})
}

// Reconcile POST /admin/reconcile.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	var req dto.ReconcileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidPayload()
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = h.batchSize
	}
	report, err := h.reconciler.Run(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
