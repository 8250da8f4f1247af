// Package dashboard implements the interactive console for a ProxMon server.
//
// The dashboard shows node and guest metrics with the alert toggles, and,
// for confirmed admins, the user list and the audit log.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: identity snapshot, feed results, cursors, the open dialog
//   - Update: keystrokes, feed results, identity changes, settled writes
//   - View: renders the current state to a string
//
// Data does not come from Bubble Tea commands. Run registers the polling
// feeds on a poll.Scheduler and each feed's apply function sends its result
// into the program, so all state still changes on the update loop.
//
// # Tabs and capabilities
//
//	Nodes  - always shown
//	Users  - confirmed admins
//	Audit  - confirmed admins
//
// Tab access is derived from authz on every identity snapshot. While the
// stored token claims admin but the server has not confirmed it yet, the
// Users and Audit titles are shown as pending, without data or actions.
//
// # Writes
//
// Alert toggles and user actions go through a mutation.Coordinator. The new
// value shows at once, the request runs in a tea.Cmd, and a failure puts the
// previous value back and posts the server's detail as a notice. A second
// write to the same target while one is pending is refused.
//
// # Session end
//
// When the API client ends the session (401, or 403 on /me) the program
// quits and Run returns the termination so the caller can print it.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	r           - Refresh every feed
//	tab, 1-3    - Switch tab
//	c/m/d       - Toggle CPU/RAM/disk alerts
//	a/o/x       - Toggle active, change role, delete (Users tab)
//	j/k, ↑/↓    - Move the cursor
//	?           - Toggle help overlay
package dashboard
