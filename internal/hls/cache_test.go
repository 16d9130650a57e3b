package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scenevault/scenevault/internal/models"
)

func TestPlanCache(t *testing.T) {
	cache := NewPlanCache()
	id := models.NewULID()

	assert.Nil(t, cache.Get(id))
	assert.Zero(t, cache.Len())

	plan := Plan{0, 3.0, 6.0}
	cache.Put(id, plan)
	assert.Equal(t, plan, cache.Get(id))
	assert.Equal(t, 1, cache.Len())

	cache.Delete(id)
	assert.Nil(t, cache.Get(id))
	assert.Zero(t, cache.Len())
}

func TestPlanCache_Keys(t *testing.T) {
	cache := NewPlanCache()
	a, b := models.NewULID(), models.NewULID()
	cache.Put(a, Plan{0, 3})
	cache.Put(b, Plan{0, 4})

	keys := cache.Keys()
	assert.ElementsMatch(t, []models.ULID{a, b}, keys)
}

func TestPlanCache_OverwriteWins(t *testing.T) {
	cache := NewPlanCache()
	id := models.NewULID()

	cache.Put(id, Plan{0, 3})
	cache.Put(id, Plan{0, 3, 6})
	assert.Equal(t, Plan{0, 3, 6}, cache.Get(id))
	assert.Equal(t, 1, cache.Len())
}
