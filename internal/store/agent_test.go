package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/aiarena/engine/internal/rating"
)

func TestNewAgentDefaults(t *testing.T) {
	a := &Agent{ID: uuid.New(), Rating: rating.DefaultRating}
	assert.Equal(t, rating.DefaultRating, a.Rating)
	assert.False(t, a.InGame)
	assert.False(t, a.Removed)
}

func TestErrNotFoundIsDistinct(t *testing.T) {
	assert.EqualError(t, ErrNotFound, "store: agent not found")
}

func TestRandomOrderKeywordPicksDriverFunction(t *testing.T) {
	assert.Equal(t, "RAND()", randomOrderKeyword("mysql"))
	assert.Equal(t, "RANDOM()", randomOrderKeyword("postgres"))
	assert.Equal(t, "RANDOM()", randomOrderKeyword("sqlite"))
}
