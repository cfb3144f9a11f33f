//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_SingleActiveSessionPerType(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	repo := NewGormImportSessionRepository(db)
	ctx := context.Background()

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := exchange.NewImportSession(exchange.ImportTypeFull, exchange.TriggerAPI, time.Now().UTC())
			if !assert.NoError(t, err) {
				return
			}
			err = repo.Create(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case assert.ErrorIs(t, err, shared.ErrAlreadyExists):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, rejected)
}

func TestPostgres_MappingsCascadeAndNameUniqueness(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	brands := NewGormBrandRepository(db)
	mappings := NewGormMappingRepository(db)
	ctx := context.Background()
	seq := testutil.NewSequence("pg")

	brand, err := catalog.NewBrand(seq.Name("brand"))
	require.NoError(t, err)
	require.NoError(t, brands.Create(ctx, brand))

	dup, err := catalog.NewBrand(brand.Name + " ")
	require.NoError(t, err)
	assert.ErrorIs(t, brands.Create(ctx, dup), shared.ErrAlreadyExists)

	m, err := catalog.NewExternalMapping(brand.ID, seq.ExternalID(), brand.Name)
	require.NoError(t, err)
	require.NoError(t, mappings.Create(ctx, catalog.KindBrand, m))

	// bypass the repository so only the foreign key removes the mapping
	require.NoError(t, db.Exec("DELETE FROM brands WHERE id = ?", brand.ID).Error)
	_, err = mappings.FindByExternalID(ctx, catalog.KindBrand, m.ExternalID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
