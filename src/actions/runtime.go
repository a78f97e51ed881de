package actions

import "github.com/stake-plus/storyvote/src/actions/core"

type (
	// Manager re-exports core.Manager for the process entry point.
	Manager = core.Manager
	// Module re-exports the core.Module interface.
	Module = core.Module
)

// NewManager forwards to core.NewManager.
func NewManager(mods ...Module) *Manager {
	return core.NewManager(mods...)
}
