package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventName(t *testing.T) {
	tests := []struct {
		name       string
		wantKind   Kind
		wantAction string
		wantErr    bool
	}{
		{name: "product.created", wantKind: KindProduct, wantAction: ActionCreated},
		{name: "product-variant.updated", wantKind: KindProductVariant, wantAction: ActionUpdated},
		{name: "product_metafield.deleted", wantKind: KindProductMetafield, wantAction: ActionDeleted},
		{name: "order.placed", wantErr: true},
		{name: "product.archived", wantErr: true},
		{name: "product", wantErr: true},
		{name: "product.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, action, err := ParseEventName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantAction, action)
		})
	}
}

func TestBuildKinds(t *testing.T) {
	kinds, err := buildKinds(map[string]map[string]string{"product": {"title": "name"}})
	require.NoError(t, err)
	assert.Equal(t, "name", kinds[KindProduct].Mapping.Fields["title"])
	assert.Nil(t, defaultKinds[KindProduct].Mapping.Fields, "defaults must stay untouched")
	assert.Equal(t, "product-variant", kinds[KindProduct].Mapping.Relations["variants"].Name)

	_, err = buildKinds(map[string]map[string]string{"order": {"total": "amount"}})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestKindTouches(t *testing.T) {
	spec := defaultKinds[KindRegion]
	assert.True(t, spec.touches(nil))
	assert.True(t, spec.touches([]string{"updated_at", "name"}))
	assert.False(t, spec.touches([]string{"updated_at"}))
}

func TestKindsAreStable(t *testing.T) {
	assert.Equal(t, []Kind{KindProduct, KindProductMetafield, KindProductType, KindProductVariant, KindRegion, KindUser}, Kinds())
}
