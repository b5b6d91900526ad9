// Package draft tracks the reply-editing lifecycle for a user's
// auto-respond candidates: viewing, editing, and sending, with edited
// text preserved across a failed send.
package draft
