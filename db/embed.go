// Package db provides embedded migrations and seed data.
package db

import "embed"

// Migrations holds goose SQL migrations under "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Products is the default catalog in JSON.
//
//go:embed seed/products.json
var Products []byte
