// Package logging provides structured logging utilities for the MailBae
// dashboard service.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "auth.exchange")
//	logger.Info("grant exchanged",
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("credential upserted",
//	    logging.UserHash(email))
//
// # Security Considerations
//
// Delegated mailbox tokens and user emails flow through every layer of this
// service, so:
//   - User emails are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly; SanitizeToken reports length only
package logging
