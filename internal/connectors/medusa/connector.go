package medusa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"strapisync/internal/logger"
	"strapisync/internal/models"
)

// ErrNotFound is returned by Retrieve when no row matches the id.
var ErrNotFound = errors.New("entity not found")

// Entity is the untyped tree handed to the mirror transformer.
type Entity = map[string]interface{}

// FindConfig selects columns and relations, and pages List results.
type FindConfig struct {
	Select    []string
	Relations []string
	Skip      int
	Take      int

	// WithDeleted also matches soft-deleted rows.
	WithDeleted bool
}

type table struct {
	one  func() interface{}
	many func() interface{}
}

var tables = map[string]table{
	"product": {
		one:  func() interface{} { return &models.Product{} },
		many: func() interface{} { return &[]models.Product{} },
	},
	"product_variant": {
		one:  func() interface{} { return &models.ProductVariant{} },
		many: func() interface{} { return &[]models.ProductVariant{} },
	},
	"product_type": {
		one:  func() interface{} { return &models.ProductType{} },
		many: func() interface{} { return &[]models.ProductType{} },
	},
	"product_metafield": {
		one:  func() interface{} { return &models.ProductMetafield{} },
		many: func() interface{} { return &[]models.ProductMetafield{} },
	},
	"region": {
		one:  func() interface{} { return &models.Region{} },
		many: func() interface{} { return &[]models.Region{} },
	},
	"user": {
		one:  func() interface{} { return &models.User{} },
		many: func() interface{} { return &[]models.User{} },
	},
}

// Connector reads canonical commerce entities straight from the backend's
// tables.
type Connector struct {
	db     *gorm.DB
	logger *logger.Logger
}

func New(db *gorm.DB, logger *logger.Logger) *Connector {
	return &Connector{
		db:     db,
		logger: logger,
	}
}

// Retrieve loads one entity of the given kind with the requested relations
// preloaded and projects it onto cfg.Select.
func (c *Connector) Retrieve(ctx context.Context, kind, id string, cfg FindConfig) (Entity, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	q := c.query(ctx, cfg.Relations)
	if cfg.WithDeleted {
		q = q.Unscoped()
	}

	out := t.one()
	if err := q.Where("id = ?", id).First(out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		return nil, fmt.Errorf("failed to retrieve %s %s: %w", kind, id, err)
	}

	return project(out, cfg)
}

// List returns entities matching selector (column -> value), ordered by id.
func (c *Connector) List(ctx context.Context, kind string, selector map[string]interface{}, cfg FindConfig) ([]Entity, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	q := c.query(ctx, cfg.Relations).Order("id")
	if len(selector) > 0 {
		q = q.Where(selector)
	}
	if cfg.Skip > 0 {
		q = q.Offset(cfg.Skip)
	}
	if cfg.Take > 0 {
		q = q.Limit(cfg.Take)
	}

	rows := t.many()
	if err := q.Find(rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	var raw []json.RawMessage
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(raw))
	for _, r := range raw {
		e, err := projectJSON(r, cfg)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	c.logger.Debug("listed %d %s rows (skip=%d take=%d)", len(entities), kind, cfg.Skip, cfg.Take)
	return entities, nil
}

// AnnotateUser merges values into a user's metadata, deleted users included.
func (c *Connector) AnnotateUser(ctx context.Context, id string, values map[string]interface{}) error {
	db := c.db.WithContext(ctx).Unscoped()

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to retrieve user %s: %w", id, err)
	}
	if user.Metadata == nil {
		user.Metadata = map[string]interface{}{}
	}
	for k, v := range values {
		user.Metadata[k] = v
	}
	if err := db.Model(&user).Select("Metadata").Updates(&user).Error; err != nil {
		return fmt.Errorf("failed to annotate user %s: %w", id, err)
	}
	return nil
}

func (c *Connector) query(ctx context.Context, relations []string) *gorm.DB {
	q := c.db.WithContext(ctx)
	for _, rel := range relations {
		q = q.Preload(preloadPath(rel))
	}
	return q
}

func project(v interface{}, cfg FindConfig) (Entity, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return projectJSON(data, cfg)
}

// projectJSON keeps id, the selected columns and the roots of the requested
// relations. An empty Select keeps every column.
func projectJSON(data []byte, cfg FindConfig) (Entity, error) {
	var entity Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, err
	}
	if len(cfg.Select) == 0 {
		return entity, nil
	}

	keep := map[string]bool{"id": true}
	for _, s := range cfg.Select {
		keep[s] = true
	}
	for _, rel := range cfg.Relations {
		root, _, _ := strings.Cut(rel, ".")
		keep[root] = true
	}
	for k := range entity {
		if !keep[k] {
			delete(entity, k)
		}
	}
	return entity, nil
}

// preloadPath turns "variants.prices" into gorm's "Variants.Prices".
func preloadPath(relation string) string {
	segments := strings.Split(relation, ".")
	for i, seg := range segments {
		var b strings.Builder
		for _, part := range strings.Split(seg, "_") {
			if part == "" {
				continue
			}
			b.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
		segments[i] = b.String()
	}
	return strings.Join(segments, ".")
}
