package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"strapisync/internal/connectors/medusa"
	"strapisync/internal/guard"
	"strapisync/internal/logger"
	"strapisync/internal/services/strapi"
)

// Source is the commerce side: the owner of canonical entities.
type Source interface {
	Retrieve(ctx context.Context, kind, id string, cfg medusa.FindConfig) (medusa.Entity, error)
	List(ctx context.Context, kind string, selector map[string]interface{}, cfg medusa.FindConfig) ([]medusa.Entity, error)
}

// Reasons a change was skipped without a write.
const (
	SkipEcho              = "echo"
	SkipIrrelevant        = "irrelevant"
	SkipTypeNotConfigured = "type_not_configured"
)

// Result is the uniform outcome of one mirror operation.
type Result struct {
	ID       int64                  `json:"id,omitempty"`
	MedusaID string                 `json:"medusa_id"`
	Status   int                    `json:"status"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Skipped  string                 `json:"skipped,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// OK reports whether the remote accepted the write.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status <= 299 && r.Skipped == ""
}

type Options struct {
	ServiceUser      strapi.Identity
	FieldOverrides   map[string]map[string]string
	BulkSyncPath     string
	BulkSyncTimeout  time.Duration
	MedusaBackendURL string

	ResyncConcurrency int
	ResyncPageSize    int
}

// Engine drives create, update and delete of mirrored entries.
type Engine struct {
	client *strapi.Client
	source Source
	guard  *guard.Guard
	kinds  map[Kind]kindSpec
	opts   Options
	logger *logger.Logger

	bootMu sync.RWMutex
	boot   BootstrapStatus
}

func NewEngine(client *strapi.Client, source Source, g *guard.Guard, opts Options, log *logger.Logger) (*Engine, error) {
	kinds, err := buildKinds(opts.FieldOverrides)
	if err != nil {
		return nil, err
	}
	if opts.BulkSyncPath == "" {
		opts.BulkSyncPath = "/strapi-plugin-medusa/synchronise-medusa-tables"
	}
	if opts.BulkSyncTimeout <= 0 {
		opts.BulkSyncTimeout = time.Hour
	}
	if opts.ResyncConcurrency <= 0 {
		opts.ResyncConcurrency = 4
	}
	if opts.ResyncPageSize <= 0 {
		opts.ResyncPageSize = 50
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		client: client,
		source: source,
		guard:  g,
		kinds:  kinds,
		opts:   opts,
		logger: log.Named("mirror"),
		boot:   BootstrapStatus{State: BootstrapPending},
	}, nil
}

// Create mirrors a commerce entity that has no CMS entry yet. A second create
// for the same id yields status 409.
func (e *Engine) Create(ctx context.Context, kind Kind, id string) (Result, error) {
	spec, err := e.spec(kind)
	if err != nil {
		return Result{}, err
	}
	if spec.Admin {
		return e.createUser(ctx, spec, id)
	}
	if res, skip := e.precheck(ctx, kind, spec, id, "create"); skip {
		return res, nil
	}

	entity, err := e.fetch(ctx, kind, spec, id, false)
	if err != nil {
		return Result{}, err
	}

	remoteID, err := e.lookup(ctx, spec, id)
	if err != nil {
		return e.failed(kind, "create", id, err), nil
	}
	if remoteID != 0 {
		e.logger.Info("%s %s is already mirrored as %d", kind, id, remoteID)
		return Result{ID: remoteID, MedusaID: id, Status: http.StatusConflict}, nil
	}

	body := map[string]interface{}{"data": strapi.Transform(entity, spec.Mapping)}
	e.mark(ctx, id)
	resp, err := e.withUserToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.Send(ctx, http.MethodPost, spec.RemoteType, token, id, body)
	})
	if err != nil {
		return e.failed(kind, "create", id, err), nil
	}
	e.logger.Info("created %s %s in strapi", kind, id)
	return entryResult(id, resp), nil
}

// Update rewrites the mirrored entry. Events whose changed fields miss the
// kind's allow-list are dropped before any remote call; an empty field list
// always passes.
func (e *Engine) Update(ctx context.Context, kind Kind, id string, changed []string) (Result, error) {
	spec, err := e.spec(kind)
	if err != nil {
		return Result{}, err
	}
	if !spec.touches(changed) {
		e.logger.Debug("ignoring %s %s update of %v", kind, id, changed)
		return Result{MedusaID: id, Status: http.StatusNoContent, Skipped: SkipIrrelevant}, nil
	}
	if spec.Admin {
		return e.updateUser(ctx, spec, id)
	}
	if res, skip := e.precheck(ctx, kind, spec, id, "update"); skip {
		return res, nil
	}

	entity, err := e.fetch(ctx, kind, spec, id, false)
	if err != nil {
		return Result{}, err
	}

	remoteID, err := e.lookup(ctx, spec, id)
	if err != nil {
		return e.failed(kind, "update", id, err), nil
	}
	if remoteID == 0 {
		return Result{MedusaID: id, Status: http.StatusNotFound}, nil
	}

	body := map[string]interface{}{"data": strapi.Transform(entity, spec.Mapping)}
	e.mark(ctx, id)
	resp, err := e.withUserToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.Send(ctx, http.MethodPut, spec.RemoteType, token, strconv.FormatInt(remoteID, 10), body)
	})
	if err != nil {
		return e.failed(kind, "update", id, err), nil
	}
	e.logger.Info("updated %s %s in strapi", kind, id)
	return entryResult(id, resp), nil
}

// Delete removes the mirrored entry. The commerce row may already be gone,
// so only users, which need their email, are fetched.
func (e *Engine) Delete(ctx context.Context, kind Kind, id string) (Result, error) {
	spec, err := e.spec(kind)
	if err != nil {
		return Result{}, err
	}
	if spec.Admin {
		return e.deleteUser(ctx, spec, id)
	}
	if res, skip := e.precheck(ctx, kind, spec, id, "delete"); skip {
		return res, nil
	}

	remoteID, err := e.lookup(ctx, spec, id)
	if err != nil {
		return e.failed(kind, "delete", id, err), nil
	}
	if remoteID == 0 {
		return Result{MedusaID: id, Status: http.StatusNotFound}, nil
	}

	e.mark(ctx, id)
	resp, err := e.withUserToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.Send(ctx, http.MethodDelete, spec.RemoteType, token, strconv.FormatInt(remoteID, 10), nil)
	})
	if err != nil {
		return e.failed(kind, "delete", id, err), nil
	}
	e.logger.Info("deleted %s %s from strapi", kind, id)
	res := entryResult(id, resp)
	if res.ID == 0 {
		res.ID = remoteID
	}
	return res, nil
}

func (e *Engine) spec(kind Kind) (kindSpec, error) {
	spec, ok := e.kinds[kind]
	if !ok {
		return kindSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return spec, nil
}

// precheck runs the type check and the echo check. It returns true when the
// operation must stop with the returned result.
func (e *Engine) precheck(ctx context.Context, kind Kind, spec kindSpec, id, op string) (Result, bool) {
	if err := e.checkType(ctx, kind, spec); err != nil {
		var notConfigured *TypeNotConfiguredError
		if errors.As(err, &notConfigured) {
			e.logger.Info("skipping %s of %s %s: %v", op, kind, id, err)
			return Result{MedusaID: id, Status: http.StatusBadRequest, Skipped: SkipTypeNotConfigured}, true
		}
		return e.failed(kind, op, id, err), true
	}
	return e.echoCheck(ctx, kind, id, op)
}

func (e *Engine) echoCheck(ctx context.Context, kind Kind, id, op string) (Result, bool) {
	ignore, err := e.guard.ShouldIgnore(ctx, id, guard.SideStrapi)
	if err != nil {
		return e.failed(kind, op, id, err), true
	}
	if ignore {
		e.logger.Debug("skipping %s of %s %s: change came from strapi", op, kind, id)
		return Result{MedusaID: id, Status: http.StatusNoContent, Skipped: SkipEcho}, true
	}
	return Result{}, false
}

// checkType checks that the CMS has a collection for the kind.
func (e *Engine) checkType(ctx context.Context, kind Kind, spec kindSpec) error {
	q := &strapi.Query{
		Pagination:       &strapi.Pagination{PageSize: 1},
		PublicationState: strapi.PublicationPreview,
	}
	_, err := e.withUserToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.Find(ctx, spec.RemoteType, token, q)
	})
	var reqErr *strapi.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
		return &TypeNotConfiguredError{Kind: kind, RemoteType: spec.RemoteType}
	}
	return err
}

func (e *Engine) fetch(ctx context.Context, kind Kind, spec kindSpec, id string, withDeleted bool) (medusa.Entity, error) {
	entity, err := e.source.Retrieve(ctx, string(kind), id, medusa.FindConfig{
		Select:      spec.Select,
		Relations:   spec.Relations,
		WithDeleted: withDeleted,
	})
	if err != nil {
		return nil, &DomainFetchError{Kind: kind, ID: id, Err: err}
	}
	return entity, nil
}

// lookup resolves a commerce id to the CMS entry id, or 0 when unmirrored.
// Drafts count as mirrored.
func (e *Engine) lookup(ctx context.Context, spec kindSpec, id string) (int64, error) {
	q := &strapi.Query{
		Filters:          strapi.FilterEq(spec.Mapping.IDKey(), id),
		Pagination:       &strapi.Pagination{PageSize: 1},
		PublicationState: strapi.PublicationPreview,
	}
	resp, err := e.withUserToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.Find(ctx, spec.RemoteType, token, q)
	})
	if err != nil {
		return 0, err
	}
	entries, err := resp.Entries()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].ID, nil
}

// mark records that this side is about to write id, so the CMS webhook that
// follows can be dropped.
func (e *Engine) mark(ctx context.Context, id string) {
	if err := e.guard.Add(ctx, id, guard.SideMedusa); err != nil {
		e.logger.Warn("%v", err)
	}
}

func (e *Engine) failed(kind Kind, op, id string, err error) Result {
	e.logger.Error("failed to %s %s %s in strapi: %v", op, kind, id, err)
	return Result{MedusaID: id, Status: http.StatusBadRequest, Error: err.Error()}
}

func entryResult(id string, resp *strapi.Response) Result {
	res := Result{MedusaID: id, Status: resp.StatusCode}
	if entry, err := resp.Entry(); err == nil && entry != nil {
		res.ID = entry.ID
		res.Data = entry.Attributes
	}
	return res
}

// withUserToken runs call with the service account token and retries once
// with a fresh login when the token is rejected.
func (e *Engine) withUserToken(ctx context.Context, call func(token string) (*strapi.Response, error)) (*strapi.Response, error) {
	user := e.opts.ServiceUser
	cred, err := e.client.Auth.Token(ctx, user)
	if err != nil {
		return nil, err
	}
	resp, err := call(cred.Token)

	var expired *strapi.AuthExpiredError
	if !errors.As(err, &expired) {
		return resp, err
	}
	e.logger.Info("strapi rejected token for %s, logging in again", user.Email)
	e.client.Auth.Invalidate(user.Email)
	if cred, err = e.client.Auth.Token(ctx, user); err != nil {
		return nil, err
	}
	return call(cred.Token)
}

// withAdminToken is withUserToken for the super admin.
func (e *Engine) withAdminToken(ctx context.Context, call func(token string) (*strapi.Response, error)) (*strapi.Response, error) {
	cred, err := e.client.Auth.AdminToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := call(cred.Token)

	var expired *strapi.AuthExpiredError
	if !errors.As(err, &expired) {
		return resp, err
	}
	e.logger.Info("strapi rejected the admin token, logging in again")
	e.client.Auth.InvalidateAdmin()
	if cred, err = e.client.Auth.AdminToken(ctx); err != nil {
		return nil, err
	}
	return call(cred.Token)
}
