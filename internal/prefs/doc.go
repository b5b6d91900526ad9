// Package prefs stores per-user dashboard preferences: the display
// timezone and the hour-of-day cutoff that scopes mailbox queries.
package prefs
