// Package seed loads a support directory (groups, members, escalation rules)
// from a YAML fixture.
package seed

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/service"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// Directory is the fixture document.
type Directory struct {
	Groups []Group `yaml:"groups"`
	Rules  []Rule  `yaml:"rules"`
}

// Group is one support group. Key is a fixture-local name used by parent
// and rule references.
type Group struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Building string   `yaml:"building"`
	Floor    int      `yaml:"floor"`
	Parent   string   `yaml:"parent,omitempty"`
	Members  []Member `yaml:"members"`
}

// Member is one membership inside a group.
type Member struct {
	UserID      string      `yaml:"user_id"`
	Role        domain.Role `yaml:"role"`
	CanAssign   bool        `yaml:"can_assign"`
	CanEscalate bool        `yaml:"can_escalate"`
}

// Rule links two fixture groups.
type Rule struct {
	Source          string                   `yaml:"source"`
	Target          string                   `yaml:"target"`
	Trigger         domain.EscalationTrigger `yaml:"trigger"`
	DelayMinutes    int                      `yaml:"delay_minutes"`
	ReopenThreshold int                      `yaml:"reopen_threshold"`
	Priority        int                      `yaml:"priority"`
}

// Result counts what Apply created and what already existed.
type Result struct {
	GroupsCreated  int
	GroupsExisting int
	MembersCreated int
	MembersSkipped int
	RulesCreated   int
	RulesSkipped   int
}

// Parse decodes and checks a fixture.
func Parse(r io.Reader) (*Directory, error) {
	var d Directory
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Directory) validate() error {
	keys := make(map[string]bool, len(d.Groups))
	for i, g := range d.Groups {
		if g.Key == "" {
			return fmt.Errorf("groups[%d]: key required", i)
		}
		if keys[g.Key] {
			return fmt.Errorf("groups[%d]: duplicate key %q", i, g.Key)
		}
		keys[g.Key] = true
	}
	for _, g := range d.Groups {
		if g.Parent != "" && !keys[g.Parent] {
			return fmt.Errorf("group %q: unknown parent %q", g.Key, g.Parent)
		}
	}
	for i, r := range d.Rules {
		if !keys[r.Source] || !keys[r.Target] {
			return fmt.Errorf("rules[%d]: unknown group reference %q -> %q", i, r.Source, r.Target)
		}
	}
	return nil
}

// Apply creates the fixture through the directory service. Groups that already
// cover the same building and floor are reused, so applying twice is harmless.
func Apply(ctx context.Context, directory *service.DirectoryService, d *Directory, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &Result{}
	ids := make(map[string]int64, len(d.Groups))

	for _, g := range d.Groups {
		group, created, err := ensureGroup(ctx, directory, g)
		if err != nil {
			return res, fmt.Errorf("group %q: %w", g.Key, err)
		}
		ids[g.Key] = group.ID
		if created {
			res.GroupsCreated++
		} else {
			res.GroupsExisting++
		}

		for _, m := range g.Members {
			_, err := directory.AddMember(ctx, service.AddMemberInput{
				UserID:      m.UserID,
				GroupID:     group.ID,
				Role:        m.Role,
				CanAssign:   m.CanAssign,
				CanEscalate: m.CanEscalate,
			})
			switch {
			case err == nil:
				res.MembersCreated++
			case apperrors.CodeOf(err) == apperrors.CodeConflict:
				res.MembersSkipped++
			default:
				return res, fmt.Errorf("group %q member %q: %w", g.Key, m.UserID, err)
			}
		}
	}

	for _, g := range d.Groups {
		if g.Parent == "" {
			continue
		}
		parentID := ids[g.Parent]
		if _, err := directory.UpdateGroup(ctx, ids[g.Key], service.UpdateGroupInput{ParentGroupID: &parentID}); err != nil {
			return res, fmt.Errorf("group %q parent: %w", g.Key, err)
		}
	}

	existing, err := directory.ListRules(ctx, nil)
	if err != nil {
		return res, err
	}
	for _, r := range d.Rules {
		input := service.CreateRuleInput{
			SourceGroupID:   ids[r.Source],
			TargetGroupID:   ids[r.Target],
			Trigger:         r.Trigger,
			DelayMinutes:    r.DelayMinutes,
			ReopenThreshold: r.ReopenThreshold,
			Priority:        r.Priority,
		}
		if hasRule(existing, input) {
			res.RulesSkipped++
			continue
		}
		if _, err := directory.CreateRule(ctx, input); err != nil {
			return res, fmt.Errorf("rule %s %s -> %s: %w", r.Trigger, r.Source, r.Target, err)
		}
		res.RulesCreated++
	}

	logger.Info("directory seeded",
		zap.Int("groups_created", res.GroupsCreated),
		zap.Int("members_created", res.MembersCreated),
		zap.Int("rules_created", res.RulesCreated))
	return res, nil
}

func ensureGroup(ctx context.Context, directory *service.DirectoryService, g Group) (*domain.SupportGroup, bool, error) {
	group, err := directory.CreateGroup(ctx, service.CreateGroupInput{Name: g.Name, Building: g.Building, Floor: g.Floor})
	if err == nil {
		return group, true, nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		return nil, false, err
	}
	groups, listErr := directory.ListGroups(ctx, g.Building, false)
	if listErr != nil {
		return nil, false, listErr
	}
	for i := range groups {
		if groups[i].Floor == g.Floor {
			return &groups[i], false, nil
		}
	}
	return nil, false, err
}

func hasRule(rules []domain.EscalationRule, input service.CreateRuleInput) bool {
	for _, r := range rules {
		if r.SourceGroupID == input.SourceGroupID && r.TargetGroupID == input.TargetGroupID &&
			r.TriggerType == input.Trigger && r.Priority == input.Priority {
			return true
		}
	}
	return false
}
