package references

import (
	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/model"
)

// Reader is the read side of the cache used by resolvers.
// Both *cache.State and *cache.View implement it.
type Reader interface {
	GetByID(resource string, id model.ID) (model.Record, bool)
	GetByIDs(resource string, ids []model.ID) map[model.ID]model.Record
	OneToMany(key string) (cache.OneToManyEntry, bool)
	PossibleValues(key string) (cache.PossibleValuesEntry, bool)
}

var (
	_ Reader = (*cache.State)(nil)
	_ Reader = (*cache.View)(nil)
)
