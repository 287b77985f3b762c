package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/subscription"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/usage"
)

func newTestService() (*Service, *subscription.MemoryStore, *usage.MemoryTracker) {
	store := subscription.NewMemoryStore()
	tracker := usage.NewMemoryTracker()
	return NewService(store, tracker, nil, nil), store, tracker
}

func seedUser(store *subscription.MemoryStore, userID, role, tier string) {
	store.PutUser(&subscription.User{ID: userID, Role: role})
	if tier != "" {
		store.PutSubscription(&subscription.Subscription{UserID: userID, TierSlug: tier, Active: true})
	}
}

func TestGetUserPermissionLevel(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	seedUser(store, "admin-user", subscription.RoleAdmin, "")
	seedUser(store, "free-user", subscription.RoleMember, "")
	seedUser(store, "starter-user", subscription.RoleMember, subscription.TierStarter)
	seedUser(store, "growth-user", subscription.RoleMember, subscription.TierGrowth)
	seedUser(store, "agency-user", subscription.RoleMember, subscription.TierAgency)

	tests := []struct {
		userID string
		want   Level
	}{
		{"admin-user", LevelAdmin},
		{"free-user", LevelViewOnly},
		{"starter-user", LevelExecuteBasic},
		{"growth-user", LevelExecuteAdvanced},
		{"agency-user", LevelExecuteAdvanced},
	}

	for _, tt := range tests {
		level, err := svc.GetUserPermissionLevel(ctx, tt.userID)
		require.NoError(t, err, tt.userID)
		assert.Equal(t, tt.want, level, tt.userID)
	}
}

func TestGetUserPermissionLevel_UnknownUserFailsClosed(t *testing.T) {
	svc, _, _ := newTestService()

	level, err := svc.GetUserPermissionLevel(context.Background(), "ghost")
	assert.Error(t, err)
	assert.Equal(t, LevelViewOnly, level)
}

func TestGetUserPermissionLevel_NoTierGrantsAdmin(t *testing.T) {
	// The top paid tier still caps at advanced execution
	svc, store, _ := newTestService()
	seedUser(store, "agency-user", subscription.RoleMember, subscription.TierAgency)

	level, err := svc.GetUserPermissionLevel(context.Background(), "agency-user")
	require.NoError(t, err)
	assert.Equal(t, LevelExecuteAdvanced, level)
}

func TestCheckToolExecutionPermission(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	seedUser(store, "admin-user", subscription.RoleAdmin, "")
	seedUser(store, "free-user", subscription.RoleMember, "")
	seedUser(store, "starter-user", subscription.RoleMember, subscription.TierStarter)
	seedUser(store, "growth-user", subscription.RoleMember, subscription.TierGrowth)

	tests := []struct {
		name    string
		userID  string
		tool    string
		allowed bool
	}{
		{"view only denied safe", "free-user", "navigate", false},
		{"basic allowed safe", "starter-user", "navigate", true},
		{"basic denied moderate", "starter-user", "http_request", false},
		{"basic denied dangerous", "starter-user", "shell_exec", false},
		{"advanced allowed moderate", "growth-user", "click", true},
		{"advanced denied dangerous", "growth-user", "write_file", false},
		{"admin allowed dangerous", "admin-user", "shell_exec", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckToolExecutionPermission(ctx, tt.userID, tt.tool, nil)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				var denied *DeniedError
				require.ErrorAs(t, err, &denied)
				assert.Equal(t, tt.tool, denied.Tool)
				assert.NotEmpty(t, denied.Reason)
			}
		})
	}
}

func TestCheckToolExecutionPermission_UpgradeMessage(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, "starter-user", subscription.RoleMember, subscription.TierStarter)

	err := svc.CheckToolExecutionPermission(context.Background(), "starter-user", "http_request", nil)
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Reason, "Upgrade to Growth or higher")
}

func TestCheckToolExecutionPermission_UnknownTool(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, "admin-user", subscription.RoleAdmin, "")

	err := svc.CheckToolExecutionPermission(context.Background(), "admin-user", "rm_rf", nil)
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Reason, "Unknown tool")
}

func TestCheckToolExecutionPermission_UnknownUserFailsClosed(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.CheckToolExecutionPermission(context.Background(), "ghost", "navigate", nil)
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "Unable to verify execution permissions. Access denied.", denied.Reason)
}

func TestCheckToolExecutionPermission_ScopesOnlyNarrow(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	seedUser(store, "admin-user", subscription.RoleAdmin, "")
	seedUser(store, "starter-user", subscription.RoleMember, subscription.TierStarter)

	// Admin with a safe-only key cannot run moderate tools
	err := svc.CheckToolExecutionPermission(ctx, "admin-user", "click", []string{"agent:execute:safe"})
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Reason, "not scoped")

	// A broad key never lifts the user's own level
	err = svc.CheckToolExecutionPermission(ctx, "starter-user", "click", []string{ScopeExecuteWildcard})
	require.ErrorAs(t, err, &denied)

	// Wildcard scopes pass the scope gate
	assert.NoError(t, svc.CheckToolExecutionPermission(ctx, "admin-user", "click", []string{ScopeWildcard}))
	assert.NoError(t, svc.CheckToolExecutionPermission(ctx, "admin-user", "navigate", []string{ScopeExecuteWildcard}))

	// Empty (non-nil) scope set authorizes nothing
	err = svc.CheckToolExecutionPermission(ctx, "admin-user", "navigate", []string{})
	require.ErrorAs(t, err, &denied)

	// nil scopes means a session caller; only the user's level applies
	assert.NoError(t, svc.CheckToolExecutionPermission(ctx, "admin-user", "navigate", nil))
}

func TestCheckExecutionLimits(t *testing.T) {
	svc, store, tracker := newTestService()
	ctx := context.Background()

	seedUser(store, "starter-user", subscription.RoleMember, subscription.TierStarter)

	check := svc.CheckExecutionLimits(ctx, "starter-user")
	require.True(t, check.CanExecute)
	assert.Equal(t, 1, check.Limits.MaxConcurrentAgents)
	assert.Equal(t, 100, check.Limits.MonthlyExecutionLimit)

	// One active execution exhausts the starter concurrency limit
	require.NoError(t, tracker.StartExecution(ctx, "starter-user"))
	check = svc.CheckExecutionLimits(ctx, "starter-user")
	assert.False(t, check.CanExecute)
	assert.Contains(t, check.Reason, "Concurrent agent limit reached (1 of 1)")

	// Finishing frees the slot again
	require.NoError(t, tracker.FinishExecution(ctx, "starter-user"))
	check = svc.CheckExecutionLimits(ctx, "starter-user")
	assert.True(t, check.CanExecute)
	assert.Equal(t, 1, check.Usage.MonthlyExecutions, "monthly count must survive completion")
}

func TestCheckExecutionLimits_MonthlyLimit(t *testing.T) {
	svc, store, tracker := newTestService()
	ctx := context.Background()

	seedUser(store, "starter-user", subscription.RoleMember, subscription.TierStarter)

	for i := 0; i < 100; i++ {
		require.NoError(t, tracker.StartExecution(ctx, "starter-user"))
		require.NoError(t, tracker.FinishExecution(ctx, "starter-user"))
	}

	check := svc.CheckExecutionLimits(ctx, "starter-user")
	assert.False(t, check.CanExecute)
	assert.Contains(t, check.Reason, "Monthly execution limit reached (100 of 100)")
}

func TestCheckExecutionLimits_NoSubscription(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, "free-user", subscription.RoleMember, "")

	check := svc.CheckExecutionLimits(context.Background(), "free-user")
	assert.False(t, check.CanExecute)
	assert.Contains(t, check.Reason, "No active subscription")
}

func TestCheckExecutionLimits_AdminWithoutSubscription(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, "admin-user", subscription.RoleAdmin, "")

	check := svc.CheckExecutionLimits(context.Background(), "admin-user")
	assert.True(t, check.CanExecute)
}

func TestCheckExecutionLimits_UnknownUserFailsClosed(t *testing.T) {
	svc, _, _ := newTestService()

	check := svc.CheckExecutionLimits(context.Background(), "ghost")
	assert.False(t, check.CanExecute)
}

func TestGetPermissionSummary(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, "growth-user", subscription.RoleMember, subscription.TierGrowth)

	summary, err := svc.GetPermissionSummary(context.Background(), "growth-user")
	require.NoError(t, err)

	assert.Equal(t, LevelExecuteAdvanced, summary.Level)
	assert.Contains(t, summary.AllowedTools, ToolCategorySafe)
	assert.Contains(t, summary.AllowedTools, ToolCategoryModerate)
	assert.NotContains(t, summary.AllowedTools, ToolCategoryDangerous)
	require.NotNil(t, summary.Quota)
	assert.True(t, summary.Quota.CanExecute)
}

func TestLevelAllows(t *testing.T) {
	tests := []struct {
		level    Level
		category ToolCategory
		want     bool
	}{
		{LevelViewOnly, ToolCategorySafe, false},
		{LevelExecuteBasic, ToolCategorySafe, true},
		{LevelExecuteBasic, ToolCategoryModerate, false},
		{LevelExecuteAdvanced, ToolCategoryModerate, true},
		{LevelExecuteAdvanced, ToolCategoryDangerous, false},
		{LevelAdmin, ToolCategoryDangerous, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.Allows(tt.category), "%s / %s", tt.level, tt.category)
	}
}

func TestCategoryForTool(t *testing.T) {
	category, known := CategoryForTool("navigate")
	require.True(t, known)
	assert.Equal(t, ToolCategorySafe, category)

	category, known = CategoryForTool("shell_exec")
	require.True(t, known)
	assert.Equal(t, ToolCategoryDangerous, category)

	_, known = CategoryForTool("unknown_tool")
	assert.False(t, known)
}
