package mirror

import (
	"context"
	"fmt"
	"strings"
)

// Actions carried by change events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event is a commerce change notification. Fields lists the changed columns
// for granular updates and is empty when the whole entity changed.
type Event struct {
	Kind   Kind     `json:"kind" binding:"required"`
	Action string   `json:"action" binding:"required,oneof=created updated deleted"`
	ID     string   `json:"id" binding:"required"`
	Fields []string `json:"fields,omitempty"`
}

// ParseEventName splits names such as "product-variant.updated" into a kind
// and an action.
func ParseEventName(name string) (Kind, string, error) {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return "", "", fmt.Errorf("invalid event name %q", name)
	}
	kind, err := ParseKind(strings.ReplaceAll(name[:i], "-", "_"))
	if err != nil {
		return "", "", err
	}
	action := name[i+1:]
	switch action {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return kind, action, nil
	}
	return "", "", fmt.Errorf("invalid event action %q", action)
}

// Handle routes an event to Create, Update or Delete.
func (e *Engine) Handle(ctx context.Context, ev Event) (Result, error) {
	switch ev.Action {
	case ActionCreated:
		return e.Create(ctx, ev.Kind, ev.ID)
	case ActionUpdated:
		return e.Update(ctx, ev.Kind, ev.ID, ev.Fields)
	case ActionDeleted:
		return e.Delete(ctx, ev.Kind, ev.ID)
	}
	return Result{}, fmt.Errorf("unsupported action %q for %s %s", ev.Action, ev.Kind, ev.ID)
}

func (e *Engine) CreateProduct(ctx context.Context, id string) (Result, error) {
	return e.Create(ctx, KindProduct, id)
}

func (e *Engine) UpdateProduct(ctx context.Context, id string, fields []string) (Result, error) {
	return e.Update(ctx, KindProduct, id, fields)
}

func (e *Engine) DeleteProduct(ctx context.Context, id string) (Result, error) {
	return e.Delete(ctx, KindProduct, id)
}

func (e *Engine) CreateProductVariant(ctx context.Context, id string) (Result, error) {
	return e.Create(ctx, KindProductVariant, id)
}

func (e *Engine) UpdateProductVariant(ctx context.Context, id string, fields []string) (Result, error) {
	return e.Update(ctx, KindProductVariant, id, fields)
}

func (e *Engine) DeleteProductVariant(ctx context.Context, id string) (Result, error) {
	return e.Delete(ctx, KindProductVariant, id)
}

func (e *Engine) CreateRegion(ctx context.Context, id string) (Result, error) {
	return e.Create(ctx, KindRegion, id)
}

func (e *Engine) UpdateRegion(ctx context.Context, id string, fields []string) (Result, error) {
	return e.Update(ctx, KindRegion, id, fields)
}

func (e *Engine) DeleteRegion(ctx context.Context, id string) (Result, error) {
	return e.Delete(ctx, KindRegion, id)
}

func (e *Engine) CreateProductType(ctx context.Context, id string) (Result, error) {
	return e.Create(ctx, KindProductType, id)
}

func (e *Engine) UpdateProductType(ctx context.Context, id string, fields []string) (Result, error) {
	return e.Update(ctx, KindProductType, id, fields)
}

func (e *Engine) DeleteProductType(ctx context.Context, id string) (Result, error) {
	return e.Delete(ctx, KindProductType, id)
}

func (e *Engine) CreateProductMetafield(ctx context.Context, id string) (Result, error) {
	return e.Create(ctx, KindProductMetafield, id)
}

func (e *Engine) UpdateProductMetafield(ctx context.Context, id string, fields []string) (Result, error) {
	return e.Update(ctx, KindProductMetafield, id, fields)
}

func (e *Engine) DeleteProductMetafield(ctx context.Context, id string) (Result, error) {
	return e.Delete(ctx, KindProductMetafield, id)
}

func (e *Engine) CreateUser(ctx context.Context, id string) (Result, error) {
	return e.Create(ctx, KindUser, id)
}

func (e *Engine) UpdateUser(ctx context.Context, id string, fields []string) (Result, error) {
	return e.Update(ctx, KindUser, id, fields)
}

func (e *Engine) DeleteUser(ctx context.Context, id string) (Result, error) {
	return e.Delete(ctx, KindUser, id)
}
