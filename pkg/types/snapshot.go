package types

import "time"

// Category names of the registry trees.
const (
	CategoryData     = "data"
	CategorySetup    = "setup"
	CategoryLanguage = "language"
	CategoryDatabase = "database"
)

// Categories lists every exported tree in export order.
var Categories = []string{
	CategoryData,
	CategorySetup,
	CategoryLanguage,
	CategoryDatabase,
}

// ModuleInfo identifies an applied module and its place in the load order.
type ModuleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Position    int    `json:"position"`
}

// Snapshot is the exportable state of a registry after loading: the applied
// modules in load order and one tree per category.
type Snapshot struct {
	RunID     string              `json:"run_id"`
	CreatedAt time.Time           `json:"created_at"`
	Modules   []ModuleInfo        `json:"modules"`
	Trees     map[string]*Mapping `json:"trees"`
}
