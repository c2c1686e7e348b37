// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL statements for the order ledger and the webhook
// event log. Statements are idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
