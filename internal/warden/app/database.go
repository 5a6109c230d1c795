package app

import (
	"fmt"
	"strings"

	"github.com/aussiebroadwan/warden/internal/warden/store"
	"github.com/aussiebroadwan/warden/internal/warden/store/drivers/postgres"
	"github.com/aussiebroadwan/warden/internal/warden/store/drivers/sqlite"
)

// IsPostgres reports whether database names a postgres server rather than a
// sqlite file.
func IsPostgres(database string) bool {
	return strings.HasPrefix(database, "postgres://") || strings.HasPrefix(database, "postgresql://")
}

// OpenStore opens the user store named by database and brings its schema up
// to date. Both the service and the reset tool go through here.
func OpenStore(database string) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	if IsPostgres(database) {
		st, err = postgres.NewStore(database)
	} else {
		st, err = sqlite.NewStore(sqlite.FileDSN(database))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return st, nil
}
