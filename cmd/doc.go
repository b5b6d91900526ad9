// Package cmd implements the command-line interface for the dashboard
// service.
//
// This package provides the following commands:
//   - serve: Start the dashboard HTTP server
//   - migrate: Create the token and settings tables in Postgres
//   - version: Display version information
package cmd
