// Package treewalk drives population of the dataset: starting from root item
// ids it fetches, extracts, classifies, resolves, validates, and persists
// each item, then follows the resolved requirement references breadth-first
// until the frontier is exhausted or the depth limit is reached.
//
// Every item reaches exactly one terminal state per run. A visited set
// guarantees an item is processed at most once even when several parents
// reference it, so a rerun over an unchanged dataset is a no-op apart from
// frontier discovery.
package treewalk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
	"github.com/krjackso/gw2-data-repo/internal/classify"
	"github.com/krjackso/gw2-data-repo/internal/extract"
	"github.com/krjackso/gw2-data-repo/internal/gw2api"
	"github.com/krjackso/gw2-data-repo/internal/observe"
	"github.com/krjackso/gw2-data-repo/internal/resolve"
	"github.com/krjackso/gw2-data-repo/internal/wiki"
)

// Status is an item's terminal state within one run.
type Status string

const (
	// StatusDone means the item was populated and persisted.
	StatusDone Status = "done"

	// StatusFailed means a fetch, resolution, or persistence failure.
	StatusFailed Status = "failed"

	// StatusSkipped means the item needed no work: already stored, its
	// source page is unavailable, or it lies past the depth bound.
	StatusSkipped Status = "skipped"
)

// ErrDepthExceeded marks a skipped result for an item discovered past the
// depth bound. It is recorded so the summary names what a deeper run would
// pick up.
var ErrDepthExceeded = errors.New("treewalk: depth limit exceeded")

// ItemSource fetches item attributes from the game API.
type ItemSource interface {
	Item(ctx context.Context, id int) (*gw2api.Item, error)
}

// Store is the subset of the dataset store the walker needs.
type Store interface {
	Load(ctx context.Context, id int) (*acquisition.Item, bool, error)
	Save(ctx context.Context, item *acquisition.Item) error
}

// Result is one item's outcome.
type Result struct {
	ItemID int
	Status Status
	Depth  int
	Err    error
}

// Summary describes a completed run.
type Summary struct {
	RunID    string
	Mode     resolve.Mode
	Started  time.Time
	Finished time.Time

	Counts map[Status]int

	// Per-error-kind tallies across all processed items.
	Ambiguous         int
	Classification    int
	SourceUnavailable int
	Invalid           int

	// Truncated is set when the item limit stopped the walk before the
	// frontier was exhausted.
	Truncated bool

	Results []Result
}

// Walker performs the traversal. Construct with [New].
type Walker struct {
	source     ItemSource
	extractor  extract.Extractor
	classifier *classify.Classifier
	resolver   *resolve.Resolver
	store      Store
	metrics    *observe.Metrics
	logger     *slog.Logger

	mode     resolve.Mode
	maxDepth int
	limit    int
	force    bool
	failFast bool
}

// Option configures a Walker.
type Option func(*Walker)

// WithMode sets the resolution mode. Default [resolve.ModeStrict].
func WithMode(mode resolve.Mode) Option {
	return func(w *Walker) { w.mode = mode }
}

// WithMaxDepth bounds traversal depth from the roots. Default 10.
func WithMaxDepth(depth int) Option {
	return func(w *Walker) { w.maxDepth = depth }
}

// WithLimit caps how many items one run processes. Zero means unlimited.
func WithLimit(limit int) Option {
	return func(w *Walker) { w.limit = limit }
}

// WithForce re-populates items that are already stored.
func WithForce(force bool) Option {
	return func(w *Walker) { w.force = force }
}

// WithFailFast aborts the run on the first failed item.
func WithFailFast(failFast bool) Option {
	return func(w *Walker) { w.failFast = failFast }
}

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Walker) { w.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) { w.logger = l }
}

// New constructs a Walker over the given collaborators.
func New(source ItemSource, extractor extract.Extractor, classifier *classify.Classifier, resolver *resolve.Resolver, store Store, opts ...Option) *Walker {
	w := &Walker{
		source:     source,
		extractor:  extractor,
		classifier: classifier,
		resolver:   resolver,
		store:      store,
		logger:     slog.Default(),
		mode:       resolve.ModeStrict,
		maxDepth:   10,
	}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	return w
}

type queued struct {
	id    int
	depth int
}

// Walk traverses from the given roots. The returned summary always covers
// everything processed, even when err is non-nil (fail-fast abort or context
// cancellation).
func (w *Walker) Walk(ctx context.Context, roots []int) (*Summary, error) {
	ctx, span := observe.StartSpan(ctx, "treewalk.Walk")
	defer span.End()

	summary := &Summary{
		RunID:   uuid.NewString(),
		Mode:    w.mode,
		Started: time.Now().UTC(),
		Counts:  map[Status]int{},
	}
	logger := w.logger.With("run_id", summary.RunID, "mode", string(w.mode))
	if tid := observe.CorrelationID(ctx); tid != "" {
		logger = logger.With("trace_id", tid)
	}
	logger.Info("starting walk", "roots", len(roots), "max_depth", w.maxDepth, "force", w.force)

	// visited marks ids at enqueue time, not dequeue time, so a child first
	// seen within the depth bound can never be claimed later by the
	// depth-exceeded branch of a deeper parent.
	queue := make([]queued, 0, len(roots))
	visited := map[int]bool{}
	for _, id := range roots {
		if visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, queued{id: id, depth: 0})
	}
	w.metrics.QueueDepth.Add(ctx, int64(len(queue)))

	defer func() {
		summary.Finished = time.Now().UTC()
		logger.Info("walk finished",
			"done", summary.Counts[StatusDone],
			"failed", summary.Counts[StatusFailed],
			"skipped", summary.Counts[StatusSkipped],
			"duration", summary.Finished.Sub(summary.Started),
		)
	}()

	processed := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if w.limit > 0 && processed >= w.limit {
			summary.Truncated = true
			logger.Info("item limit reached", "limit", w.limit, "queued", len(queue))
			break
		}

		next := queue[0]
		queue = queue[1:]
		w.metrics.QueueDepth.Add(ctx, -1)
		processed++

		result, children := w.processItem(ctx, logger, summary, next)
		summary.Results = append(summary.Results, result)
		summary.Counts[result.Status]++
		w.metrics.RecordItem(ctx, string(result.Status))

		if result.Status == StatusFailed && w.failFast {
			return summary, fmt.Errorf("treewalk: item %d failed: %w", result.ItemID, result.Err)
		}

		if next.depth < w.maxDepth {
			added := 0
			for _, child := range children {
				if visited[child] {
					continue
				}
				visited[child] = true
				queue = append(queue, queued{id: child, depth: next.depth + 1})
				added++
			}
			w.metrics.QueueDepth.Add(ctx, int64(added))
			continue
		}
		// Children discovered past the depth bound are recorded, not resolved.
		for _, child := range children {
			if visited[child] {
				continue
			}
			visited[child] = true
			logger.Debug("depth limit reached", "item_id", child, "depth", next.depth+1)
			summary.Results = append(summary.Results, Result{
				ItemID: child,
				Status: StatusSkipped,
				Depth:  next.depth + 1,
				Err:    ErrDepthExceeded,
			})
			summary.Counts[StatusSkipped]++
			w.metrics.RecordItem(ctx, string(StatusSkipped))
		}
	}
	return summary, nil
}

// processItem takes one queued id to a terminal state and returns the child
// ids to enqueue.
func (w *Walker) processItem(ctx context.Context, logger *slog.Logger, summary *Summary, q queued) (Result, []int) {
	result := Result{ItemID: q.id, Depth: q.depth}

	if !w.force {
		stored, ok, err := w.store.Load(ctx, q.id)
		if err != nil {
			result.Status = StatusFailed
			result.Err = err
			return result, nil
		}
		if ok {
			logger.Debug("item already stored", "item_id", q.id)
			result.Status = StatusSkipped
			return result, stored.RequiredItemIDs()
		}
	}

	meta, err := w.source.Item(ctx, q.id)
	if err != nil {
		logger.Warn("item fetch failed", "item_id", q.id, "error", err)
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}

	raws, err := w.extractor.Extract(ctx, meta.ID, meta.Name)
	if err != nil {
		var unavailable *extract.SourceUnavailableError
		if errors.As(err, &unavailable) {
			logger.Info("source page unavailable", "item_id", q.id, "name", meta.Name)
			summary.SourceUnavailable++
			w.metrics.RecordResolutionError(ctx, "source_unavailable")
			result.Status = StatusSkipped
			return result, nil
		}
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}

	entries, classifyErrs := w.classifier.ClassifyAll(raws)
	for _, cerr := range classifyErrs {
		logger.Warn("entry failed classification", "item_id", q.id, "error", cerr)
		summary.Classification++
		w.metrics.RecordResolutionError(ctx, "classification")
	}

	acqs, dropped, err := w.resolver.ResolveAll(entries, w.mode)
	if err != nil {
		w.countResolutionError(ctx, summary, err)
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}
	for _, derr := range dropped {
		w.countResolutionError(ctx, summary, derr)
	}

	valid := acqs[:0]
	for _, acq := range acqs {
		if verr := acquisition.Validate(acq); verr != nil {
			if w.mode == resolve.ModeStrict {
				summary.Invalid++
				w.metrics.RecordResolutionError(ctx, "invalid")
				result.Status = StatusFailed
				result.Err = verr
				return result, nil
			}
			logger.Warn("dropping invalid acquisition", "item_id", q.id, "kind", acq.Kind, "error", verr)
			summary.Invalid++
			w.metrics.RecordResolutionError(ctx, "invalid")
			continue
		}
		w.metrics.RecordAcquisition(ctx, string(acq.Kind))
		valid = append(valid, acq)
	}

	item := &acquisition.Item{
		ID:           meta.ID,
		Name:         meta.Name,
		Type:         meta.Type,
		Rarity:       meta.Rarity,
		Level:        meta.Level,
		Flags:        meta.Flags,
		WikiURL:      wiki.PageURL(meta.Name),
		LastUpdated:  time.Now().UTC().Format("2006-01-02"),
		Acquisitions: valid,
	}
	if verr := acquisition.ValidateItem(item); verr != nil {
		summary.Invalid++
		w.metrics.RecordResolutionError(ctx, "invalid")
		result.Status = StatusFailed
		result.Err = verr
		return result, nil
	}
	if err := w.store.Save(ctx, item); err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}

	logger.Info("item populated", "item_id", q.id, "name", meta.Name, "acquisitions", len(valid), "depth", q.depth)
	result.Status = StatusDone
	return result, item.RequiredItemIDs()
}

func (w *Walker) countResolutionError(ctx context.Context, summary *Summary, err error) {
	var aerr *resolve.AmbiguousNameError
	if errors.As(err, &aerr) {
		summary.Ambiguous++
		w.metrics.RecordResolutionError(ctx, "ambiguous")
		return
	}
	w.metrics.RecordResolutionError(ctx, "resolution")
}
