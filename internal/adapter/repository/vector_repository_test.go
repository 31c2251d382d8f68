package repository

import (
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=postgres dbname=meeting_intelligence sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestSearchQuery_OrderBy(t *testing.T) {
	db := newDryRunDB(t)
	vec := pgvector.NewVector([]float32{1, 0, 0})
	meetingID := uuid.New()

	unscoped := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []vectorRow
		return searchQuery(tx, vec, nil, 5).Scan(&rows)
	})
	assert.NotContains(t, unscoped, "WHERE")
	assert.Contains(t, unscoped, "ORDER BY embedding <=>")
	assert.Contains(t, unscoped, "ASC, id ASC")

	scoped := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []vectorRow
		return searchQuery(tx, vec, &meetingID, 5).Scan(&rows)
	})
	assert.Contains(t, scoped, meetingID.String())
	assert.Contains(t, scoped, "ORDER BY distance ASC, id ASC")
	orderBy := scoped[strings.Index(scoped, "ORDER BY"):]
	assert.NotContains(t, orderBy, "<=>")
}

func TestClampDistance(t *testing.T) {
	assert.Equal(t, 1.0, clampDistance(math.NaN()))
	assert.Equal(t, 1.0, clampDistance(1.2))
	assert.Equal(t, 0.0, clampDistance(-0.01))
	assert.Equal(t, 0.25, clampDistance(0.25))
}
