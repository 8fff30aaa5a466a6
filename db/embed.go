// Package db embeds the PostgreSQL schema.
package db

import _ "embed"

// Schema contains the DDL for device state and receipts. Statements are
// idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
