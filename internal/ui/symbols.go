package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓"
	SymbolFail     = "✗"
	SymbolPending  = "○"
	SymbolProgress = "◐"
	SymbolRunning  = "●"
	SymbolStopped  = "◌"
	SymbolInfo     = "ℹ"
	SymbolCrown    = "♛" // superadmin
	SymbolLocked   = "⊘" // action not permitted
)
