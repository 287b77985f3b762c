package permissions

import (
	"context"
	"fmt"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/eventbus"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/metrics"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/subscription"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/usage"
)

// Scopes understood on API credentials. A scoped credential can only narrow
// what the underlying user could otherwise do, never broaden it.
const (
	ScopeExecutePrefix   = "agent:execute:"
	ScopeExecuteWildcard = "agent:execute:*"
	ScopeWildcard        = "*:*"
)

// LimitCheck is the structured result of a quota check. It is a return
// value, not an error: callers routinely branch on it to show upgrade
// prompts.
type LimitCheck struct {
	CanExecute bool   `json:"can_execute"`
	Reason     string `json:"reason,omitempty"`
	Limits     Limits `json:"limits"`
	Usage      Usage  `json:"usage"`
}

// Limits holds the tier quota a user is checked against.
type Limits struct {
	MaxConcurrentAgents   int `json:"max_concurrent_agents"`
	MonthlyExecutionLimit int `json:"monthly_execution_limit"`
}

// Usage holds a user's current consumption.
type Usage struct {
	ActiveExecutions  int `json:"active_executions"`
	MonthlyExecutions int `json:"monthly_executions"`
}

// Summary is the dashboard view of a user's entitlements.
type Summary struct {
	UserID       string                    `json:"user_id"`
	Level        Level                     `json:"permission_level"`
	AllowedTools map[ToolCategory][]string `json:"allowed_tools"`
	Quota        *LimitCheck               `json:"quota"`
}

// Service computes entitlement levels and validates operations and quota
// usage before they run. Levels are recomputed on every check rather than
// cached, so subscription changes take effect immediately. Every derivation
// failure denies: ambiguity never defaults to allow.
type Service struct {
	store    subscription.Store
	usage    usage.Tracker
	eventBus *eventbus.EventBus
	metrics  *metrics.Metrics
}

// NewService creates a permission gate over the given identity store and
// usage tracker. Event bus and metrics may be nil.
func NewService(store subscription.Store, tracker usage.Tracker, eb *eventbus.EventBus, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		usage:    tracker,
		eventBus: eb,
		metrics:  m,
	}
}

// GetUserPermissionLevel derives a user's entitlement level. The admin role
// always yields admin regardless of subscription; otherwise the level comes
// from the tier slug and the advanced-execution feature flag. No
// subscription means view-only.
func (s *Service) GetUserPermissionLevel(ctx context.Context, userID string) (Level, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return LevelViewOnly, fmt.Errorf("failed to resolve user: %w", err)
	}

	if user.Role == subscription.RoleAdmin {
		return LevelAdmin, nil
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return LevelViewOnly, fmt.Errorf("failed to resolve subscription: %w", err)
	}
	if sub == nil {
		return LevelViewOnly, nil
	}

	tier, err := s.store.GetTier(ctx, sub.TierSlug)
	if err != nil {
		return LevelViewOnly, fmt.Errorf("failed to resolve tier: %w", err)
	}

	switch tier.Slug {
	case subscription.TierStarter:
		return LevelExecuteBasic, nil
	case subscription.TierAgency:
		// Top tier always gets advanced execution. No tier grants admin;
		// that level is reserved for the admin role.
		return LevelExecuteAdvanced, nil
	default:
		if tier.HasFeature(subscription.FeatureAdvancedExecution) {
			return LevelExecuteAdvanced, nil
		}
		return LevelExecuteBasic, nil
	}
}

// CheckToolExecutionPermission validates a single tool invocation before it
// runs. apiKeyScopes is non-nil when the caller authenticated with a scoped
// credential; the credential's scopes are checked first and must explicitly
// include the matching category. Returns a *DeniedError on any refusal.
func (s *Service) CheckToolExecutionPermission(ctx context.Context, userID, tool string, apiKeyScopes []string) error {
	category, known := CategoryForTool(tool)
	if !known {
		return s.deny(&DeniedError{
			UserID: userID,
			Tool:   tool,
			Level:  LevelViewOnly,
			Reason: fmt.Sprintf("Unknown tool %q cannot be executed.", tool),
		})
	}

	if apiKeyScopes != nil && !scopeAllows(apiKeyScopes, category) {
		return s.deny(&DeniedError{
			UserID:   userID,
			Tool:     tool,
			Level:    LevelViewOnly,
			Category: category,
			Reason:   fmt.Sprintf("API key is not scoped for %s tool execution. Add the %s%s scope.", category, ScopeExecutePrefix, category),
		})
	}

	level, err := s.GetUserPermissionLevel(ctx, userID)
	if err != nil {
		// Fail closed on any derivation error.
		return s.deny(&DeniedError{
			UserID:   userID,
			Tool:     tool,
			Level:    LevelViewOnly,
			Category: category,
			Reason:   "Unable to verify execution permissions. Access denied.",
		})
	}

	if !level.Allows(category) {
		return s.deny(&DeniedError{
			UserID:   userID,
			Tool:     tool,
			Level:    level,
			Category: category,
			Reason:   denialReason(level, category),
		})
	}

	return nil
}

// CheckExecutionLimits checks a user's current concurrent and monthly usage
// against their tier quota. Breaches block new execution starts only, never
// in-flight ones. Derivation errors deny.
func (s *Service) CheckExecutionLimits(ctx context.Context, userID string) *LimitCheck {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return s.reject("lookup_failed", &LimitCheck{
			Reason: "Unable to verify execution limits. Access denied.",
		})
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return s.reject("lookup_failed", &LimitCheck{
			Reason: "Unable to verify execution limits. Access denied.",
		})
	}
	if sub == nil {
		if user.Role == subscription.RoleAdmin {
			// Admins without a subscription are not quota-limited.
			return &LimitCheck{CanExecute: true}
		}
		return s.reject("no_subscription", &LimitCheck{
			Reason: "No active subscription. Executions require a paid plan.",
		})
	}

	tier, err := s.store.GetTier(ctx, sub.TierSlug)
	if err != nil {
		return s.reject("lookup_failed", &LimitCheck{
			Reason: "Unable to verify execution limits. Access denied.",
		})
	}

	limits := Limits{
		MaxConcurrentAgents:   tier.MaxConcurrentAgents,
		MonthlyExecutionLimit: tier.MonthlyExecutionLimit,
	}

	active, err := s.usage.ActiveExecutions(ctx, userID)
	if err != nil {
		return s.reject("usage_unavailable", &LimitCheck{
			Limits: limits,
			Reason: "Unable to verify current usage. Access denied.",
		})
	}
	monthly, err := s.usage.MonthlyExecutions(ctx, userID)
	if err != nil {
		return s.reject("usage_unavailable", &LimitCheck{
			Limits: limits,
			Reason: "Unable to verify current usage. Access denied.",
		})
	}

	current := Usage{ActiveExecutions: active, MonthlyExecutions: monthly}

	if active >= tier.MaxConcurrentAgents {
		return s.reject("concurrent_limit", &LimitCheck{
			Limits: limits,
			Usage:  current,
			Reason: fmt.Sprintf("Concurrent agent limit reached (%d of %d). Wait for a running automation to finish or upgrade your plan.", active, tier.MaxConcurrentAgents),
		})
	}
	if monthly >= tier.MonthlyExecutionLimit {
		return s.reject("monthly_limit", &LimitCheck{
			Limits: limits,
			Usage:  current,
			Reason: fmt.Sprintf("Monthly execution limit reached (%d of %d). Limits reset at the start of next month, or upgrade your plan.", monthly, tier.MonthlyExecutionLimit),
		})
	}

	return &LimitCheck{CanExecute: true, Limits: limits, Usage: current}
}

// GetPermissionSummary returns a user's level, the tools available at that
// level grouped by category, and their current quota usage.
func (s *Service) GetPermissionSummary(ctx context.Context, userID string) (*Summary, error) {
	level, err := s.GetUserPermissionLevel(ctx, userID)
	if err != nil {
		return nil, err
	}

	allowed := make(map[ToolCategory][]string)
	for category, tools := range ToolsByCategory() {
		if level.Allows(category) {
			allowed[category] = tools
		}
	}

	return &Summary{
		UserID:       userID,
		Level:        level,
		AllowedTools: allowed,
		Quota:        s.CheckExecutionLimits(ctx, userID),
	}, nil
}

func (s *Service) deny(denial *DeniedError) error {
	if s.metrics != nil {
		s.metrics.PermissionDenials.WithLabelValues(string(denial.Level), string(denial.Category)).Inc()
	}
	if s.eventBus != nil {
		_ = s.eventBus.Publish(&eventbus.Event{
			Type:   eventbus.EventTypePermissionDenied,
			Source: "permission-gate",
			Data: map[string]interface{}{
				"user_id":  denial.UserID,
				"tool":     denial.Tool,
				"level":    string(denial.Level),
				"category": string(denial.Category),
				"reason":   denial.Reason,
			},
		})
	}
	return denial
}

func (s *Service) reject(reason string, check *LimitCheck) *LimitCheck {
	check.CanExecute = false
	if s.metrics != nil {
		s.metrics.QuotaRejections.WithLabelValues(reason).Inc()
	}
	if s.eventBus != nil {
		_ = s.eventBus.Publish(&eventbus.Event{
			Type:   eventbus.EventTypeQuotaExceeded,
			Source: "permission-gate",
			Data: map[string]interface{}{
				"reason": check.Reason,
			},
		})
	}
	return check
}

// denialReason builds the user-facing message for a level/category refusal,
// including the upgrade path when one exists.
func denialReason(level Level, category ToolCategory) string {
	switch level {
	case LevelViewOnly:
		return "View-only access cannot execute agent tools. Upgrade to a paid plan to run automations."
	case LevelExecuteBasic:
		if category == ToolCategoryModerate {
			return "Basic execution level cannot execute moderate tools. Upgrade to Growth or higher."
		}
		return "Basic execution level cannot execute dangerous tools. These require admin access."
	case LevelExecuteAdvanced:
		return "Advanced execution level cannot execute dangerous tools. These require admin access."
	default:
		return fmt.Sprintf("Permission level %s cannot execute %s tools.", level, category)
	}
}

// scopeAllows reports whether a credential's scope set explicitly covers a
// risk category, directly or via wildcard.
func scopeAllows(scopes []string, category ToolCategory) bool {
	want := ScopeExecutePrefix + string(category)
	for _, scope := range scopes {
		if scope == want || scope == ScopeExecuteWildcard || scope == ScopeWildcard {
			return true
		}
	}
	return false
}
