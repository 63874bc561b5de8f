package mirror

import (
	"fmt"
	"sort"

	"strapisync/internal/services/strapi"
)

// Kind names a commerce entity type that is mirrored to the CMS.
type Kind string

const (
	KindProduct          Kind = "product"
	KindProductVariant   Kind = "product_variant"
	KindRegion           Kind = "region"
	KindProductType      Kind = "product_type"
	KindProductMetafield Kind = "product_metafield"
	KindUser             Kind = "user"
)

// kindSpec describes how one kind is fetched, filtered and mapped.
type kindSpec struct {
	// RemoteType is the collection name under /api, or the admin resource
	// for users.
	RemoteType string
	// Admin kinds go through the admin API with the super admin token.
	Admin bool

	Select    []string
	Relations []string

	// UpdateFields is the allow-list an update event must touch.
	UpdateFields map[string]bool

	Mapping *strapi.Mapping
}

func fields(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

var (
	moneyAmountMapping = &strapi.Mapping{}

	variantMapping = &strapi.Mapping{
		Relations: map[string]strapi.Relation{
			"prices":  {Name: "money-amount", Mapping: moneyAmountMapping},
			"options": {Name: "product-option-value"},
		},
	}

	optionMapping = &strapi.Mapping{
		Relations: map[string]strapi.Relation{
			"values": {Name: "product-option-value"},
		},
	}

	productMapping = &strapi.Mapping{
		Relations: map[string]strapi.Relation{
			"type":       {Name: "product-type"},
			"tags":       {Name: "product-tag"},
			"options":    {Name: "product-option", Mapping: optionMapping},
			"variants":   {Name: "product-variant", Mapping: variantMapping},
			"metafields": {Name: "product-metafield"},
		},
	}

	regionMapping = &strapi.Mapping{
		Relations: map[string]strapi.Relation{
			"countries": {Name: "country"},
		},
	}
)

var defaultKinds = map[Kind]kindSpec{
	KindProduct: {
		RemoteType: "products",
		Select: []string{
			"title", "subtitle", "description", "handle", "is_giftcard", "discountable",
			"status", "thumbnail", "weight", "length", "height", "width", "hs_code",
			"origin_country", "mid_code", "material", "metadata",
		},
		Relations: []string{
			"options", "options.values", "variants", "variants.prices", "variants.options",
			"type", "tags", "metafields",
		},
		UpdateFields: fields(
			"title", "subtitle", "description", "handle", "is_giftcard", "discountable",
			"status", "thumbnail", "weight", "length", "height", "width", "hs_code",
			"origin_country", "mid_code", "material", "metadata", "type", "tags",
			"options", "variants",
		),
		Mapping: productMapping,
	},
	KindProductVariant: {
		RemoteType: "product-variants",
		Select: []string{
			"title", "product_id", "sku", "barcode", "ean", "upc", "inventory_quantity",
			"allow_backorder", "manage_inventory", "weight", "length", "height", "width",
			"origin_country", "material", "variant_rank", "metadata",
		},
		Relations: []string{"prices", "options"},
		UpdateFields: fields(
			"title", "prices", "sku", "barcode", "ean", "upc", "inventory_quantity",
			"allow_backorder", "manage_inventory", "weight", "length", "height", "width",
			"origin_country", "material", "metadata", "options",
		),
		Mapping: variantMapping,
	},
	KindRegion: {
		RemoteType: "regions",
		Select: []string{
			"name", "currency_code", "tax_rate", "tax_code", "automatic_taxes",
			"gift_cards_taxable", "payment_providers", "fulfillment_providers", "metadata",
		},
		Relations: []string{"countries"},
		UpdateFields: fields(
			"name", "currency_code", "tax_rate", "tax_code", "countries",
			"payment_providers", "fulfillment_providers", "metadata",
		),
		Mapping: regionMapping,
	},
	KindProductType: {
		RemoteType:   "product-types",
		Select:       []string{"value", "metadata"},
		UpdateFields: fields("value", "metadata"),
		Mapping:      &strapi.Mapping{},
	},
	KindProductMetafield: {
		RemoteType:   "product-metafields",
		Select:       []string{"key", "value", "product_id"},
		UpdateFields: fields("key", "value"),
		Mapping:      &strapi.Mapping{},
	},
	KindUser: {
		RemoteType:   "users",
		Admin:        true,
		Select:       []string{"email", "first_name", "last_name", "role", "metadata"},
		UpdateFields: fields("email", "first_name", "last_name", "role"),
		Mapping:      &strapi.Mapping{},
	},
}

// buildKinds layers configured field renames over the defaults.
func buildKinds(overrides map[string]map[string]string) (map[Kind]kindSpec, error) {
	kinds := make(map[Kind]kindSpec, len(defaultKinds))
	for k, spec := range defaultKinds {
		kinds[k] = spec
	}
	for name, renames := range overrides {
		spec, ok := kinds[Kind(name)]
		if !ok {
			return nil, fmt.Errorf("%w: field override for %q", ErrUnknownKind, name)
		}
		spec.Mapping = spec.Mapping.WithFields(renames)
		kinds[Kind(name)] = spec
	}
	return kinds, nil
}

// Kinds lists every mirrored kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(defaultKinds))
	for k := range defaultKinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind validates a kind name.
func ParseKind(name string) (Kind, error) {
	if _, ok := defaultKinds[Kind(name)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return Kind(name), nil
}

func (s kindSpec) touches(changed []string) bool {
	if len(changed) == 0 {
		return true
	}
	for _, f := range changed {
		if s.UpdateFields[f] {
			return true
		}
	}
	return false
}
