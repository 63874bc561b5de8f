package mirror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strapisync/internal/connectors/medusa"
	"strapisync/internal/models"
)

// flakySource fails Retrieve for chosen ids and defers to the real source
// otherwise.
type flakySource struct {
	Source
	failures map[string]error
}

func (s *flakySource) Retrieve(ctx context.Context, kind, id string, cfg medusa.FindConfig) (medusa.Entity, error) {
	if err, ok := s.failures[id]; ok {
		return nil, err
	}
	return s.Source.Retrieve(ctx, kind, id, cfg)
}

func TestResyncUpsertsEveryEntity(t *testing.T) {
	remote := newFakeStrapi(t, "product-types")
	env := newTestEnv(t, remote)
	ctx := context.Background()

	for _, id := range []string{"ptyp_a", "ptyp_b", "ptyp_c"} {
		require.NoError(t, env.db.Create(&models.ProductType{ID: id, Value: id}).Error)
	}
	_, err := env.engine.CreateProductType(ctx, "ptyp_b")
	require.NoError(t, err)

	stats, err := env.engine.Resync(ctx, KindProductType)
	require.NoError(t, err)

	assert.Equal(t, ResyncStats{Created: 2, Updated: 1}, stats[KindProductType])
	assert.Len(t, remote.entriesOf("product-types"), 3)
}

func TestResyncCountsSkippedKinds(t *testing.T) {
	remote := newFakeStrapi(t)
	env := newTestEnv(t, remote)

	require.NoError(t, env.db.Create(&models.ProductMetafield{ID: "pmf_1", Key: "k", Value: "v", ProductID: "p1"}).Error)

	stats, err := env.engine.Resync(context.Background(), KindProductMetafield)
	require.NoError(t, err)
	assert.Equal(t, ResyncStats{Skipped: 1}, stats[KindProductMetafield])
}

func TestResyncRejectsUnknownKind(t *testing.T) {
	remote := newFakeStrapi(t)
	env := newTestEnv(t, remote)

	_, err := env.engine.Resync(context.Background(), Kind("order"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestResyncCountsPerEntityFailures(t *testing.T) {
	remote := newFakeStrapi(t, "product-types")
	env := newTestEnv(t, remote)
	ctx := context.Background()

	for _, id := range []string{"ptyp_a", "ptyp_b", "ptyp_c", "ptyp_d"} {
		require.NoError(t, env.db.Create(&models.ProductType{ID: id, Value: id}).Error)
	}
	env.engine.source = &flakySource{
		Source: env.engine.source,
		failures: map[string]error{
			"ptyp_b": errors.New("connection reset by peer"),
			"ptyp_c": fmt.Errorf("%w: product_type ptyp_c", medusa.ErrNotFound),
		},
	}

	stats, err := env.engine.Resync(ctx, KindProductType)
	require.NoError(t, err)

	assert.Equal(t, ResyncStats{Created: 2, Skipped: 1, Failed: 1}, stats[KindProductType])
	assert.Len(t, remote.entriesOf("product-types"), 2)
}

func TestResyncStopsWhenCancelled(t *testing.T) {
	remote := newFakeStrapi(t, "product-types")
	env := newTestEnv(t, remote)

	require.NoError(t, env.db.Create(&models.ProductType{ID: "ptyp_a", Value: "a"}).Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.engine.Resync(ctx, KindProductType)
	assert.ErrorIs(t, err, context.Canceled)
}
