package db

import "embed"

// Migrations holds the golang-migrate SQL files; cmd/migrate reads them
// through the iofs source driver.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"
