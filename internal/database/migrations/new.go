package migrations

import (
	"sort"

	"github.com/go-gormigrate/gormigrate/v2"
)

var registered []*gormigrate.Migration

// Register is called from the init function of each migration package.
// Migration ids are date stamped so sorting them recovers the apply order.
func Register(m *gormigrate.Migration) {
	registered = append(registered, m)
}

// gormigrate is a wrapper for gorm's migration functions that adds schema
// versioning and rollback capabilities. For help writing migration steps,
// see the gorm documentation on migrations: https://gorm.io/docs/migration.html
func New() *Migrations {
	sorted := make([]*gormigrate.Migration, len(registered))
	copy(sorted, registered)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return &Migrations{
		GormOptions: &gormigrate.Options{
			TableName:      "apiserver_migrations",
			IDColumnName:   "id",
			IDColumnSize:   40,
			UseTransaction: false,
		},
		Migrations: sorted,
	}
}
