package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tomsync/shopee-collector/internal/infrastructure/database"
)

// NewTestDB creates an in-memory SQLite database with the full schema,
// closed automatically when the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewTestConnection()
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
