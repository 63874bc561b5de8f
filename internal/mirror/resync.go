package mirror

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"strapisync/internal/connectors/medusa"
)

// ResyncStats counts outcomes per kind.
type ResyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *ResyncStats) add(created bool, res Result) {
	switch {
	case res.Skipped != "":
		s.Skipped++
	case !res.OK():
		s.Failed++
	case created:
		s.Created++
	default:
		s.Updated++
	}
}

// fail counts an entity the upsert could not finish. One that vanished from
// the commerce side since it was listed counts as skipped.
func (s *ResyncStats) fail(err error) {
	if errors.Is(err, medusa.ErrNotFound) {
		s.Skipped++
		return
	}
	s.Failed++
}

// Resync pages through the commerce entities of each kind and upserts every
// one of them: create when unmirrored, update otherwise. No kinds means all.
func (e *Engine) Resync(ctx context.Context, kinds ...Kind) (map[Kind]ResyncStats, error) {
	if len(kinds) == 0 {
		kinds = Kinds()
	}

	var mu sync.Mutex
	stats := make(map[Kind]ResyncStats, len(kinds))

	for _, kind := range kinds {
		if _, err := e.spec(kind); err != nil {
			return stats, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.ResyncConcurrency)

		var listErr error
		for skip := 0; ; skip += e.opts.ResyncPageSize {
			page, err := e.source.List(gctx, string(kind), nil, medusa.FindConfig{
				Select: []string{"id"},
				Skip:   skip,
				Take:   e.opts.ResyncPageSize,
			})
			if err != nil {
				listErr = &DomainFetchError{Kind: kind, ID: "*", Err: err}
				break
			}

			for _, entity := range page {
				id := stringField(entity, "id")
				if id == "" {
					continue
				}
				g.Go(func() error {
					created, res, err := e.upsert(gctx, kind, id)
					if err != nil {
						// One bad entity must not stop the rest of the kind.
						if ctxErr := gctx.Err(); ctxErr != nil {
							return ctxErr
						}
						e.logger.Warn("resync of %s %s failed: %v", kind, id, err)
					}
					mu.Lock()
					s := stats[kind]
					if err != nil {
						s.fail(err)
					} else {
						s.add(created, res)
					}
					stats[kind] = s
					mu.Unlock()
					return nil
				})
			}

			if len(page) < e.opts.ResyncPageSize {
				break
			}
		}

		if err := g.Wait(); err != nil {
			return stats, err
		}
		if listErr != nil {
			return stats, listErr
		}
		e.logger.Info("resynced %s: %+v", kind, stats[kind])
	}
	return stats, nil
}

// upsert creates the entry and falls back to an update when it already
// exists.
func (e *Engine) upsert(ctx context.Context, kind Kind, id string) (bool, Result, error) {
	res, err := e.Create(ctx, kind, id)
	if err != nil || res.Status != http.StatusConflict {
		return true, res, err
	}
	res, err = e.Update(ctx, kind, id, nil)
	return false, res, err
}
