package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"strapisync/internal/connectors/medusa"
	"strapisync/internal/services/strapi"
)

// adminIDMetadataKey holds the CMS admin user id in the commerce user's
// metadata once the two are linked.
const adminIDMetadataKey = "strapi_admin_id"

// UserAnnotator is implemented by sources that can record the CMS admin id
// on a commerce user, so later updates find it after an email change.
type UserAnnotator interface {
	AnnotateUser(ctx context.Context, id string, values map[string]interface{}) error
}

// CMS admin role codes for each commerce user role.
var adminRoleCodes = map[string]string{
	"admin":     "strapi-super-admin",
	"developer": "strapi-editor",
	"member":    "strapi-author",
}

type adminUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type adminRole struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

func (e *Engine) createUser(ctx context.Context, spec kindSpec, id string) (Result, error) {
	if res, skip := e.echoCheck(ctx, KindUser, id, "create"); skip {
		return res, nil
	}
	entity, err := e.fetch(ctx, KindUser, spec, id, false)
	if err != nil {
		return Result{}, err
	}
	body := adminUserBody(entity)

	existing, err := e.findAdminUser(ctx, stringField(entity, "email"))
	if err != nil {
		return e.failed(KindUser, "create", id, err), nil
	}
	if existing != nil {
		return Result{ID: existing.ID, MedusaID: id, Status: http.StatusConflict}, nil
	}

	roleID, err := e.adminRoleID(ctx, stringField(entity, "role"))
	if err != nil {
		return e.failed(KindUser, "create", id, err), nil
	}
	body["roles"] = []int64{roleID}

	e.mark(ctx, id)
	resp, err := e.withAdminToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.SendAdmin(ctx, http.MethodPost, spec.RemoteType, "", "", token, nil, body)
	})
	if err != nil {
		return e.failed(KindUser, "create", id, err), nil
	}
	e.logger.Info("created strapi admin user for %s", id)
	res := adminResult(id, resp)
	e.linkAdminUser(ctx, id, res.ID)
	return res, nil
}

func (e *Engine) updateUser(ctx context.Context, spec kindSpec, id string) (Result, error) {
	if res, skip := e.echoCheck(ctx, KindUser, id, "update"); skip {
		return res, nil
	}
	entity, err := e.fetch(ctx, KindUser, spec, id, false)
	if err != nil {
		return Result{}, err
	}

	existing, err := e.resolveAdminUser(ctx, entity)
	if err != nil {
		return e.failed(KindUser, "update", id, err), nil
	}
	if existing == nil {
		return Result{MedusaID: id, Status: http.StatusNotFound}, nil
	}

	roleID, err := e.adminRoleID(ctx, stringField(entity, "role"))
	if err != nil {
		return e.failed(KindUser, "update", id, err), nil
	}
	body := adminUserBody(entity)
	body["roles"] = []int64{roleID}

	e.mark(ctx, id)
	resp, err := e.withAdminToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.SendAdmin(ctx, http.MethodPut, spec.RemoteType, "", strconv.FormatInt(existing.ID, 10), token, nil, body)
	})
	if err != nil {
		return e.failed(KindUser, "update", id, err), nil
	}
	if linked, ok := linkedAdminID(entity); !ok || linked != existing.ID {
		e.linkAdminUser(ctx, id, existing.ID)
	}
	e.logger.Info("updated strapi admin user for %s", id)
	return adminResult(id, resp), nil
}

// deleteUser reads the soft-deleted commerce user to learn its email.
func (e *Engine) deleteUser(ctx context.Context, spec kindSpec, id string) (Result, error) {
	if res, skip := e.echoCheck(ctx, KindUser, id, "delete"); skip {
		return res, nil
	}
	entity, err := e.fetch(ctx, KindUser, spec, id, true)
	if err != nil {
		return Result{}, err
	}

	existing, err := e.resolveAdminUser(ctx, entity)
	if err != nil {
		return e.failed(KindUser, "delete", id, err), nil
	}
	if existing == nil {
		return Result{MedusaID: id, Status: http.StatusNotFound}, nil
	}

	e.mark(ctx, id)
	resp, err := e.withAdminToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.SendAdmin(ctx, http.MethodDelete, spec.RemoteType, "", strconv.FormatInt(existing.ID, 10), token, nil, nil)
	})
	if err != nil {
		return e.failed(KindUser, "delete", id, err), nil
	}
	e.logger.Info("deleted strapi admin user for %s", id)
	res := adminResult(id, resp)
	res.ID = existing.ID
	return res, nil
}

// resolveAdminUser finds the CMS admin for a commerce user, by the linked id
// when there is one and by email otherwise.
func (e *Engine) resolveAdminUser(ctx context.Context, entity medusa.Entity) (*adminUser, error) {
	if adminID, ok := linkedAdminID(entity); ok {
		user, err := e.getAdminUser(ctx, adminID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	return e.findAdminUser(ctx, stringField(entity, "email"))
}

func (e *Engine) getAdminUser(ctx context.Context, adminID int64) (*adminUser, error) {
	resp, err := e.withAdminToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.SendAdmin(ctx, http.MethodGet, "users", "", strconv.FormatInt(adminID, 10), token, nil, nil)
	})
	if err != nil {
		var reqErr *strapi.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	var out struct {
		Data *adminUser `json:"data"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// linkAdminUser records the CMS admin id on the commerce user. Failure only
// costs the email fallback later, so it is logged.
func (e *Engine) linkAdminUser(ctx context.Context, id string, adminID int64) {
	annotator, ok := e.source.(UserAnnotator)
	if !ok || adminID == 0 {
		return
	}
	if err := annotator.AnnotateUser(ctx, id, map[string]interface{}{adminIDMetadataKey: adminID}); err != nil {
		e.logger.Warn("failed to link %s to strapi admin %d: %v", id, adminID, err)
	}
}

func linkedAdminID(entity medusa.Entity) (int64, bool) {
	meta, ok := entity["metadata"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch v := meta[adminIDMetadataKey].(type) {
	case float64:
		return int64(v), v > 0
	case json.Number:
		n, err := v.Int64()
		return n, err == nil && n > 0
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

func (e *Engine) findAdminUser(ctx context.Context, email string) (*adminUser, error) {
	if email == "" {
		return nil, fmt.Errorf("user has no email")
	}
	q := &strapi.Query{Filters: strapi.FilterEq("email", email)}
	resp, err := e.withAdminToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.SendAdmin(ctx, http.MethodGet, "users", "", "", token, q, nil)
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Data struct {
			Results []adminUser `json:"results"`
		} `json:"data"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	for i := range out.Data.Results {
		if out.Data.Results[i].Email == email {
			return &out.Data.Results[i], nil
		}
	}
	return nil, nil
}

func (e *Engine) adminRoleID(ctx context.Context, role string) (int64, error) {
	code, ok := adminRoleCodes[role]
	if !ok {
		code = adminRoleCodes["member"]
	}
	resp, err := e.withAdminToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.SendAdmin(ctx, http.MethodGet, "roles", "", "", token, nil, nil)
	})
	if err != nil {
		return 0, err
	}
	var out struct {
		Data []adminRole `json:"data"`
	}
	if err := resp.Decode(&out); err != nil {
		return 0, err
	}
	for _, r := range out.Data {
		if r.Code == code {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("strapi admin role %s not found", code)
}

func adminUserBody(entity map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"email":     stringField(entity, "email"),
		"firstname": stringField(entity, "first_name"),
		"lastname":  stringField(entity, "last_name"),
	}
}

func adminResult(id string, resp *strapi.Response) Result {
	res := Result{MedusaID: id, Status: resp.StatusCode}
	var out struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := resp.Decode(&out); err == nil && out.Data != nil {
		res.Data = out.Data
		if v, ok := out.Data["id"].(float64); ok {
			res.ID = int64(v)
		}
	}
	return res
}

func stringField(entity map[string]interface{}, key string) string {
	if s, ok := entity[key].(string); ok {
		return s
	}
	return ""
}
