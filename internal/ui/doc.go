// Package ui provides the terminal building blocks shared by proxmon's
// commands and its dashboard.
//
// # Components Overview
//
//	RenderSimpleTable - Static tables for command output
//	NewTable          - Interactive Bubbles table for the dashboard
//	RenderUsageBar    - Usage bars colored against alert thresholds
//	Spinner           - Animated line while waiting on a blocking call
//	Confirm, Input    - Huh prompts that refuse to run without a terminal
//	RenderNotices     - Transient notices from notify.Center
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility. ApplyColorMode maps
// output.color (auto, always, never) onto a termenv profile; --no-color
// forces never.
//
// # Formatting
//
// Node storage arrives in GB. FormatStorage prints "X GB" below 1000 GB and
// "X.Y TB" from there on.
package ui
