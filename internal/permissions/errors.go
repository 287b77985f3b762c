package permissions

// DeniedError is raised when a tool execution check fails, always before any
// side-effecting operation runs. It carries the computed permission level
// and the tool's risk category so callers can distinguish "not allowed at
// all" from "allowed at a lower risk tier" and show the right upgrade path.
type DeniedError struct {
	UserID   string       `json:"user_id"`
	Tool     string       `json:"tool"`
	Level    Level        `json:"permission_level"`
	Category ToolCategory `json:"tool_category"`
	Reason   string       `json:"reason"`
}

// Error returns the human-readable denial reason, suitable for direct
// display.
func (e *DeniedError) Error() string {
	return e.Reason
}
