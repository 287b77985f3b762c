package permissions

// Level is a caller's coarse entitlement tier.
type Level string

const (
	LevelViewOnly        Level = "view_only"
	LevelExecuteBasic    Level = "execute_basic"
	LevelExecuteAdvanced Level = "execute_advanced"
	LevelAdmin           Level = "admin"
)

// Allows reports whether the level authorizes a risk category: view_only
// authorizes nothing, execute_basic safe only, execute_advanced safe and
// moderate, admin everything.
func (l Level) Allows(category ToolCategory) bool {
	switch l {
	case LevelAdmin:
		return true
	case LevelExecuteAdvanced:
		return category == ToolCategorySafe || category == ToolCategoryModerate
	case LevelExecuteBasic:
		return category == ToolCategorySafe
	default:
		return false
	}
}
