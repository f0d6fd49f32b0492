package domain

// Model roles. Each role maps to one configured model client; the registry is
// keyed by these values.
const (
	RoleChat     = "chat"
	RoleNamer    = "namer"
	RoleAnalyzer = "analyzer"
)
