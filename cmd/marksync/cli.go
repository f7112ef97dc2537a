package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mapmarks/engine/internal/geo"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/similarity"
	"github.com/mapmarks/engine/internal/viewport"
)

// runQuery computes and prints the visible set for the given filters.
// Arguments are key=value pairs; unknown keys are rejected.
func (a *app) runQuery(args []string) error {
	var (
		title, memo, search string
		start, end          *time.Time
	)

	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		switch strings.ToLower(key) {
		case "title":
			title = value
		case "memo":
			memo = value
		case "from":
			t, err := parseDateArg(value, false)
			if err != nil {
				return err
			}
			start = &t
		case "to":
			t, err := parseDateArg(value, true)
			if err != nil {
				return err
			}
			end = &t
		case "bounds":
			b, err := geo.BoundsFromString(value)
			if err != nil {
				return fmt.Errorf("invalid bounds %q: %w", value, err)
			}
			// a settled camera frame with the requested bounds
			a.viewport.Observe(viewport.CameraEvent{IsMoving: false, Bounds: &b})
		case "search":
			search = value
		default:
			return fmt.Errorf("unknown query key %q", key)
		}
	}

	if search != "" {
		if a.resolver == nil {
			a.logger.Warn("similarity is disabled, ignoring search text", "search", search)
		} else {
			a.resolver.Resolve(search)
			a.waitForResolution()
		}
	}

	a.engine.SetFilters(title, memo, start, end)
	visible := a.engine.Recompute()

	return printJSON(visible)
}

// waitForResolution blocks until the resolver leaves the pending state or the
// configured timeout elapses. The interactive UI recomputes on the resolved
// event instead; the CLI prints a single final answer.
func (a *app) waitForResolution() {
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		snap := a.resolver.Snapshot()
		if snap.State != similarity.StatePending {
			if snap.Err != nil {
				a.logger.Warn("similarity unavailable, showing unfiltered results", "error", snap.Err)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// runAdd creates a marker at the given position. When no title is given, the
// position is reverse-geocoded for one.
func (a *app) runAdd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: add <lat,lon> [title] [memo]")
	}

	pos, err := geo.PositionFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var title string
	if len(args) > 1 {
		title = args[1]
	} else {
		title = a.geocoder.TitleFor(ctx, pos)
	}
	var memo string
	if len(args) > 2 {
		memo = args[2]
	}

	m, err := model.New(pos, title, memo, model.HueRed)
	if err != nil {
		return err
	}
	a.store.Add(m)

	fmt.Println(m.ID)
	return nil
}

// runRemove deletes a marker by id. Unknown ids are a silent no-op.
func (a *app) runRemove(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <id>")
	}
	a.store.Remove(args[0])
	return nil
}

// runDump prints the full marker list as JSON.
func (a *app) runDump() error {
	return printJSON(a.store.Current())
}

// runSync seeds from the remote account copy, pushes the local snapshot, or
// both (the default).
func (a *app) runSync(args []string) error {
	mode := "both"
	if len(args) > 0 {
		mode = strings.ToLower(args[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a.monitor.Start()
	defer a.monitor.Stop()

	switch mode {
	case "seed":
		return a.syncer.SeedFromRemote(ctx)
	case "push":
		if err := a.syncer.PushSnapshot(ctx); err != nil {
			return err
		}
		return a.reindexEmbeddings(ctx)
	case "both":
		if err := a.syncer.SeedFromRemote(ctx); err != nil {
			return err
		}
		if err := a.syncer.PushSnapshot(ctx); err != nil {
			return err
		}
		return a.reindexEmbeddings(ctx)
	default:
		return fmt.Errorf("unknown sync mode %q", mode)
	}
}

// runIndex recomputes embeddings for markers whose text changed.
func (a *app) runIndex() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return a.reindexEmbeddings(ctx)
}

func (a *app) reindexEmbeddings(ctx context.Context) error {
	if a.indexer == nil {
		return nil
	}
	count, err := a.indexer.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d markers\n", count)
	return nil
}

// runHealthcheck verifies the marker service is reachable.
func (a *app) runHealthcheck() error {
	if err := a.cloud.Healthcheck(); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// parseDateArg accepts either a full timestamp or a bare date. Bare dates
// snap to the start or end of the day.
func parseDateArg(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.ParseInLocation(model.CreatedAtLayout, value, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006/01/02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want 2006/01/02 or %s)", value, model.CreatedAtLayout)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
