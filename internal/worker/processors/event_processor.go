package processors

import (
	"context"
	"fmt"

	"strapisync/internal/logger"
	"strapisync/internal/mirror"
)

// Engine is the part of the sync engine the processor drives.
type Engine interface {
	Handle(ctx context.Context, ev mirror.Event) (mirror.Result, error)
	Resync(ctx context.Context, kinds ...mirror.Kind) (map[mirror.Kind]mirror.ResyncStats, error)
	Bootstrap(ctx context.Context) error
}

type EventProcessor struct {
	engine Engine
	logger *logger.Logger
}

func NewEventProcessor(engine Engine, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		engine: engine,
		logger: logger,
	}
}

// Process applies one event. Rejected or skipped writes are logged and are
// not errors; an error means the event could not be applied at all.
func (ep *EventProcessor) Process(ctx context.Context, event Event) error {
	switch event.Type {
	case TypeSyncRequested:
		return ep.resync(ctx, event.Kinds)
	case TypeBootstrapRequested:
		return ep.engine.Bootstrap(ctx)
	}

	kind, action, err := mirror.ParseEventName(event.Type)
	if err != nil {
		return err
	}
	if event.ID == "" {
		return fmt.Errorf("event %s has no id", event.Type)
	}

	res, err := ep.engine.Handle(ctx, mirror.Event{
		Kind:   kind,
		Action: action,
		ID:     event.ID,
		Fields: event.Fields,
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", event.Type, event.ID, err)
	}

	switch {
	case res.Skipped != "":
		ep.logger.Debug("Skipped %s %s: %s", event.Type, event.ID, res.Skipped)
	case !res.OK():
		ep.logger.Warn("Event %s %s was not applied (status %d): %s", event.Type, event.ID, res.Status, res.Error)
	default:
		ep.logger.Info("Applied %s %s as entry %d", event.Type, event.ID, res.ID)
	}
	return nil
}

func (ep *EventProcessor) resync(ctx context.Context, names []string) error {
	kinds := make([]mirror.Kind, 0, len(names))
	for _, name := range names {
		kind, err := mirror.ParseKind(name)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	stats, err := ep.engine.Resync(ctx, kinds...)
	for kind, s := range stats {
		ep.logger.Info("Resynced %s: created=%d updated=%d skipped=%d failed=%d",
			kind, s.Created, s.Updated, s.Skipped, s.Failed)
	}
	return err
}
