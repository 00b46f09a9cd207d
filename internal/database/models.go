package database

import (
	"github.com/talentbridge-io/talentbridge/internal/database/migrations"

	_ "github.com/talentbridge-io/talentbridge/internal/database/migration_20250815_0000"
)

// Migrations returns all the registered schema migrations in apply order.
func Migrations() *migrations.Migrations {
	return migrations.New()
}
