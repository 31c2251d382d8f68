package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

// vectorRepository implements VectorIndex on pgvector
type vectorRepository struct {
	db *gorm.DB
}

// NewVectorRepository creates a new pgvector backed index
func NewVectorRepository(db *gorm.DB) repositories.VectorIndex {
	return &vectorRepository{db: db}
}

type vectorRow struct {
	entities.VectorEntry
	Distance float64
}

// Search ranks vector entries by cosine distance, halved to fit [0,1]
func (r *vectorRepository) Search(ctx context.Context, query []float32, meetingID *uuid.UUID, limit int) ([]entities.VectorMatch, error) {
	if err := validateEmbeddingDim(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []entities.VectorMatch{}, nil
	}

	var rows []vectorRow
	if err := searchQuery(r.db.WithContext(ctx), pgvector.NewVector(query), meetingID, limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	matches := make([]entities.VectorMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, entities.VectorMatch{
			Entry:    row.VectorEntry,
			Distance: clampDistance(row.Distance),
		})
	}
	return matches, nil
}

// searchQuery builds the nearest-neighbour query. Unscoped searches order by
// the raw operator and use the HNSW index. Scoped searches order by the
// computed distance so every row of the meeting is ranked exactly.
func searchQuery(db *gorm.DB, vec pgvector.Vector, meetingID *uuid.UUID, limit int) *gorm.DB {
	stmt := db.Model(&entities.VectorEntry{}).
		Select("vector_entries.*, (embedding <=> ?) / 2 AS distance", vec)
	if meetingID != nil {
		stmt = stmt.Where("meeting_id = ?", *meetingID).Order("distance ASC, id ASC")
	} else {
		stmt = stmt.Order(gorm.Expr("embedding <=> ? ASC, id ASC", vec))
	}
	return stmt.Limit(limit)
}

// clampDistance maps undefined distances (zero-norm vectors) to the maximum
func clampDistance(d float64) float64 {
	if math.IsNaN(d) || d > 1 {
		return 1
	}
	if d < 0 {
		return 0
	}
	return d
}

func validateEmbeddingDim(v []float32) error {
	if len(v) != entities.EmbeddingDimensions {
		return fmt.Errorf("%w: got %d, want %d", entities.ErrEmbeddingDimension, len(v), entities.EmbeddingDimensions)
	}
	return nil
}
