package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Workflow       *handlers.WorkflowHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	wf := app.Group("/workflow", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	wf.Post("/route-ticket", auth.RequireService(), cfg.Workflow.RouteTicket)
	wf.Post("/open-ticket", auth.RequireService(), cfg.Workflow.OpenTicket)
	wf.Get("/ticket/:ticketId/routing", cfg.Workflow.GetRoutingState)

	wf.Post("/claim/:ticketId", cfg.Workflow.Claim)
	wf.Get("/claim/:ticketId/status", cfg.Workflow.ClaimStatus)

	wf.Get("/reassign/targets", cfg.Workflow.ReassignTargets)
	wf.Post("/reassign/:ticketId", cfg.Workflow.Reassign)

	wf.Post("/escalate/:ticketId", cfg.Workflow.Escalate)
	wf.Get("/escalate/:ticketId/history", cfg.Workflow.EscalationHistory)

	wf.Get("/group/:groupId/queue", cfg.Workflow.GetGroupQueue)
	wf.Get("/group/:groupId/unclaimed", cfg.Workflow.Unclaimed)
	wf.Get("/group/:groupId/escalation-path", cfg.Workflow.EscalationPath)
	wf.Get("/group/:groupId/activity", cfg.Workflow.GroupActivity)

	wf.Get("/audit/:ticketId", cfg.Workflow.AuditTrail)
	wf.Get("/activity/recent", cfg.Workflow.RecentActivity)
	wf.Get("/member/:memberId/activity", cfg.Workflow.MemberActivity)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRoleAtLeast(domain.RoleSupervisor))
	admin.Post("/groups", cfg.Admin.CreateGroup)
	admin.Get("/groups", cfg.Admin.ListGroups)
	admin.Get("/groups/:groupId", cfg.Admin.GetGroup)
	admin.Patch("/groups/:groupId", cfg.Admin.UpdateGroup)
	admin.Delete("/groups/:groupId", cfg.Admin.DeactivateGroup)
	admin.Post("/groups/:groupId/members", cfg.Admin.AddMember)
	admin.Get("/groups/:groupId/members", cfg.Admin.ListMembers)
	admin.Get("/members/:memberId", cfg.Admin.GetMember)
	admin.Patch("/members/:memberId/status", cfg.Admin.UpdateMemberStatus)
	admin.Post("/rules", cfg.Admin.CreateRule)
	admin.Get("/rules", cfg.Admin.ListRules)
	admin.Post("/reconcile", cfg.Admin.Reconcile)
}
