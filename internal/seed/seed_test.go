package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository/memory"
	"github.com/spec-kit/workflow-service/internal/service"
)

const fixture = `
groups:
  - key: hq-1
    name: HQ floor 1
    building: HQ
    floor: 1
    parent: hq-2
    members:
      - user_id: u-junior
        role: JUNIOR
  - key: hq-2
    name: HQ floor 2
    building: HQ
    floor: 2
    members:
      - user_id: u-senior
        role: SENIOR
        can_escalate: true
      - user_id: u-super
        role: SUPERVISOR
rules:
  - source: hq-1
    target: hq-2
    trigger: SLA
    priority: 1
  - source: hq-1
    target: hq-2
    trigger: CRITICAL
    priority: 2
`

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	services := service.New(service.Dependencies{Store: memory.NewStore(), Logger: zap.NewNop()})

	d, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)

	first, err := Apply(ctx, services.Directory, d, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.GroupsCreated)
	assert.Equal(t, 3, first.MembersCreated)
	assert.Equal(t, 2, first.RulesCreated)

	second, err := Apply(ctx, services.Directory, d, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, second.GroupsExisting)
	assert.Equal(t, 3, second.MembersSkipped)
	assert.Equal(t, 2, second.RulesSkipped)

	groups, err := services.Directory.ListGroups(ctx, "HQ", false)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.NotNil(t, groups[0].ParentGroupID)
	assert.Equal(t, groups[1].ID, *groups[0].ParentGroupID)

	rules, err := services.Directory.ListRules(ctx, &groups[0].ID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, domain.TriggerCritical, rules[0].TriggerType)
}

func TestParseRejectsUnknownReferences(t *testing.T) {
	_, err := Parse(strings.NewReader(`
groups:
  - key: a
    name: A
    building: HQ
    floor: 1
rules:
  - source: a
    target: missing
    trigger: SLA
`))
	assert.ErrorContains(t, err, "unknown group reference")

	_, err = Parse(strings.NewReader("groups:\n  - name: nokey\n"))
	assert.ErrorContains(t, err, "key required")

	_, err = Parse(strings.NewReader("groups: []\nextra: 1\n"))
	assert.Error(t, err)
}

func TestSampleFixtureApplies(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "..", "fixtures", "directory.yaml"))
	require.NoError(t, err)
	defer f.Close()

	d, err := Parse(f)
	require.NoError(t, err)

	services := service.New(service.Dependencies{Store: memory.NewStore(), Logger: zap.NewNop()})
	res, err := Apply(context.Background(), services.Directory, d, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 4, res.GroupsCreated)
	assert.Equal(t, 6, res.RulesCreated)
}
