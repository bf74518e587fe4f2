// Package mcp provides an MCP (Model Context Protocol) server adapter for claimaudit.
// It lets AI assistants evaluate claims and read the audit trail.
package mcp

import "errors"

// ErrMissingAuditService is returned when the audit service is not provided.
var ErrMissingAuditService = errors.New("mcp: audit service is required")
