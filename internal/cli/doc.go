// Package cli implements the proxmon command-line interface.
//
// Every command is a cobra.Command registered on rootCmd from its own
// file's init. Commands build an app with newApp, which wires the config,
// the credential file and the API client, then call into the session,
// authz and mutation packages for the actual work.
//
// # Command Structure
//
//	proxmon login | logout | whoami       sign in and inspect the session
//	proxmon dashboard                     interactive console
//	proxmon status [--watch]              node and guest metrics
//	proxmon alerts [show|set]             CPU, RAM and disk alert toggles
//	proxmon settings ...                  notification, Proxmox and SSO settings
//	proxmon users ...                     account management (admins)
//	proxmon audit list|export|clear       audit log (admins)
//	proxmon password change               change your own password
//	proxmon account delete                delete your own account
//	proxmon exporter                      Prometheus exporter
//	proxmon config init|show              config file
//
// # Authorization
//
// Privileged commands never decide from the stored token. They confirm the
// identity with the server first (app.confirm), derive capabilities with
// authz.FromState and check the action, and for account-targeted commands
// the target row, before any request that changes something.
//
// # Output and exit codes
//
// Global --json switches every command to a JSONEnvelope on stdout,
// including errors. Exit codes are 0 on success, 2 when not signed in or
// when the session ends, 3 when an action is not permitted and 1 for
// everything else.
package cli
