package permissions

import "sort"

// ToolCategory is the fixed risk classification of an invocable operation.
type ToolCategory string

const (
	// ToolCategorySafe covers read-only operations.
	ToolCategorySafe ToolCategory = "safe"
	// ToolCategoryModerate covers state-changing but reversible operations.
	ToolCategoryModerate ToolCategory = "moderate"
	// ToolCategoryDangerous covers operations with lasting side effects.
	ToolCategoryDangerous ToolCategory = "dangerous"
)

// toolCategories maps every invocable tool to exactly one risk category.
var toolCategories = map[string]ToolCategory{
	// Read-only: page navigation, extraction, capture, documentation.
	"navigate":   ToolCategorySafe,
	"extract":    ToolCategorySafe,
	"observe":    ToolCategorySafe,
	"screenshot": ToolCategorySafe,
	"read_file":  ToolCategorySafe,
	"read_docs":  ToolCategorySafe,

	// State-changing but reversible.
	"click":        ToolCategoryModerate,
	"type":         ToolCategoryModerate,
	"http_request": ToolCategoryModerate,
	"store_data":   ToolCategoryModerate,
	"advance_plan": ToolCategoryModerate,

	// File writes, shell, session control, user-blocking prompts.
	"write_file":  ToolCategoryDangerous,
	"edit_file":   ToolCategoryDangerous,
	"shell_exec":  ToolCategoryDangerous,
	"end_session": ToolCategoryDangerous,
	"block_user":  ToolCategoryDangerous,
}

// CategoryForTool returns the risk category of a tool. Unknown tools are not
// classified and must be denied by callers.
func CategoryForTool(tool string) (ToolCategory, bool) {
	category, ok := toolCategories[tool]
	return category, ok
}

// ToolsByCategory returns the tool names in each risk category, sorted for
// stable output.
func ToolsByCategory() map[ToolCategory][]string {
	result := make(map[ToolCategory][]string)
	for tool, category := range toolCategories {
		result[category] = append(result[category], tool)
	}
	for _, tools := range result {
		sort.Strings(tools)
	}
	return result
}
