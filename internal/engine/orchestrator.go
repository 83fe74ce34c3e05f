// Package engine coordinates instruction application: it builds per-row jobs,
// drives the completion dispatcher, updates cell state, and commits parsed
// results back to the grid. The grid is mutated only here, on job commit or
// explicit user edit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/events"
	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/parse"
	"github.com/gridmind/gridmind/internal/sheet"
	"github.com/gridmind/gridmind/internal/template"
	"github.com/gridmind/gridmind/internal/track"
)

// CompletionDispatcher issues completion requests under the engine's limits.
type CompletionDispatcher interface {
	Dispatch(ctx context.Context, req core.CompletionRequest) (*core.CompletionResponse, error)
	// Concurrency reports the in-flight request cap; zero means unbounded.
	Concurrency() int
}

// SearchAugmenter fetches optional search context. The note is non-empty
// when augmentation was requested but unavailable.
type SearchAugmenter interface {
	Augment(ctx context.Context, query, apiKey string) (*core.SearchContext, string)
}

// Keys carries per-request credentials forwarded from HTTP headers. Zero
// values fall back to the configured defaults.
type Keys struct {
	Completion string
	Search     string
}

// ApplyOptions tunes a column apply.
type ApplyOptions struct {
	// Force reprocesses cells carrying manual overrides.
	Force bool
	Keys  Keys
}

// ApplySummary reports the outcome of one column apply batch.
type ApplySummary struct {
	Column    core.ColumnID `json:"column"`
	Jobs      int           `json:"jobs"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Skipped   int           `json:"skipped"`
}

// job is one ephemeral unit of work: a cell plus snapshots of its
// instruction and source value at dispatch time. Snapshotting prevents races
// when source cells mutate mid-flight.
type job struct {
	ref         core.CellRef
	source      string
	instruction core.ColumnInstruction
	generation  uint64
}

// Orchestrator applies column instructions to one sheet.
type Orchestrator struct {
	grid       *sheet.Grid
	tracker    *track.Tracker
	registry   *template.Registry
	dispatcher CompletionDispatcher
	augmenter  SearchAugmenter
	bus        *events.Bus
	logger     *logging.Logger

	mu sync.Mutex
	// cancels holds one cancel per column with an active apply batch.
	cancels map[core.ColumnID]context.CancelFunc
	// generations orders jobs per cell: commits from superseded jobs are
	// discarded (last commit wins).
	generations map[core.CellRef]uint64
}

// NewOrchestrator wires an orchestrator for one sheet.
func NewOrchestrator(
	grid *sheet.Grid,
	tracker *track.Tracker,
	registry *template.Registry,
	dispatcher CompletionDispatcher,
	augmenter SearchAugmenter,
	bus *events.Bus,
	logger *logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		grid:        grid,
		tracker:     tracker,
		registry:    registry,
		dispatcher:  dispatcher,
		augmenter:   augmenter,
		bus:         bus,
		logger:      logger.WithSheet(grid.ID()),
		cancels:     make(map[core.ColumnID]context.CancelFunc),
		generations: make(map[core.CellRef]uint64),
	}
}

// Tracker exposes the cell state tracker for read-only consumers.
func (o *Orchestrator) Tracker() *track.Tracker { return o.tracker }

// SetInstruction attaches or replaces a column's instruction. Replacement
// cancels any outstanding batch for the column and marks its computed cells
// stale; results are retained, not recomputed.
func (o *Orchestrator) SetInstruction(inst *core.ColumnInstruction) error {
	if _, err := o.registry.Get(inst.TemplateID); err != nil {
		return err
	}
	replaced, err := o.grid.SetInstruction(inst)
	if err != nil {
		return err
	}
	if replaced {
		o.CancelColumn(inst.Column)
		o.tracker.MarkColumnStale(inst.Column)
	}
	return nil
}

// ApplyColumn processes every row of the column whose source cell is
// non-empty. It blocks until the batch finishes; results stream to
// subscribers as individual jobs commit. A second apply on a column with an
// active batch is rejected.
func (o *Orchestrator) ApplyColumn(ctx context.Context, col core.ColumnID, opts ApplyOptions) (*ApplySummary, error) {
	inst := o.grid.Instruction(col)
	if inst == nil {
		return nil, core.ErrValidation(core.CodeNoInstruction,
			fmt.Sprintf("column %s has no instruction", col))
	}
	contract, err := o.registry.Get(inst.TemplateID)
	if err != nil {
		return nil, err
	}
	source, err := o.grid.Column(inst.SourceColumn)
	if err != nil {
		return nil, err
	}

	batchCtx, err := o.beginBatch(ctx, col)
	if err != nil {
		return nil, err
	}
	defer o.endBatch(col)

	summary := &ApplySummary{Column: col}
	jobs := o.buildJobs(col, inst, source, opts.Force, summary)

	o.publish(events.NewColumnApplyStartedEvent(o.grid.ID(), col, len(jobs)))
	o.logger.Info("column apply started",
		"column", string(col), "template", string(inst.TemplateID), "jobs", len(jobs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(batchCtx)
	// Fan-out matches the dispatcher cap: a cell is InFlight only while a
	// request can actually run, never while parked on the semaphore.
	if limit := o.dispatcher.Concurrency(); limit > 0 {
		g.SetLimit(limit)
	}
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			outcome := o.process(gctx, j, contract, opts.Keys)
			mu.Lock()
			switch outcome {
			case core.CellStateSucceeded:
				summary.Succeeded++
			case core.CellStateFailed:
				summary.Failed++
			default:
				summary.Cancelled++
			}
			mu.Unlock()
			// One row's failure never aborts the batch.
			return nil
		})
	}
	_ = g.Wait()

	o.publish(events.NewColumnApplyFinishedEvent(o.grid.ID(), col,
		summary.Succeeded, summary.Failed, summary.Cancelled))
	o.logger.Info("column apply finished",
		"column", string(col),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled)
	return summary, nil
}

// RegenerateCell reprocesses exactly one cell. Sibling cells are untouched;
// a terminal cell re-enters the queue, an idle one starts fresh.
func (o *Orchestrator) RegenerateCell(ctx context.Context, ref core.CellRef, keys Keys) error {
	inst := o.grid.Instruction(ref.Col)
	if inst == nil {
		return core.ErrValidation(core.CodeNoInstruction,
			fmt.Sprintf("column %s has no instruction", ref.Col))
	}
	contract, err := o.registry.Get(inst.TemplateID)
	if err != nil {
		return err
	}
	source, err := o.grid.Value(ref.Row, inst.SourceColumn)
	if err != nil {
		return err
	}
	if source == "" {
		return core.ErrValidation(core.CodeEmptySource,
			fmt.Sprintf("source cell for %s is empty", ref))
	}

	j, err := o.queueJob(ref, source, inst)
	if err != nil {
		return err
	}
	o.process(ctx, j, contract, keys)
	return nil
}

// EditCell replaces a cell's value with a user-authored result. The cell
// becomes Succeeded with a manual-override flag; column applies skip it
// unless forced.
func (o *Orchestrator) EditCell(ref core.CellRef, value string) error {
	if err := o.grid.SetValue(ref.Row, ref.Col, value); err != nil {
		return err
	}
	o.tracker.Override(ref, value)
	return nil
}

// ClearCell reverts a cell to an editable plain cell, discarding its result.
func (o *Orchestrator) ClearCell(ref core.CellRef) {
	o.tracker.Revert(ref)
}

// CancelColumn cancels the column's outstanding batch, if any. Queued and
// in-flight jobs revert to Idle; already committed cells keep their results.
func (o *Orchestrator) CancelColumn(col core.ColumnID) {
	o.mu.Lock()
	cancel, ok := o.cancels[col]
	o.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	o.publish(events.NewColumnCancelledEvent(o.grid.ID(), col))
	o.logger.Info("column apply cancelled", "column", string(col))
}

// Close cancels all outstanding batches, e.g. when the sheet is closed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.cancels))
	for _, c := range o.cancels {
		cancels = append(cancels, c)
	}
	o.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// beginBatch registers a cancelable context for the column's batch.
func (o *Orchestrator) beginBatch(ctx context.Context, col core.ColumnID) (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.cancels[col]; busy {
		return nil, core.ErrState(core.CodeColumnBusy,
			fmt.Sprintf("column %s already has an apply in progress", col))
	}
	batchCtx, cancel := context.WithCancel(ctx)
	o.cancels[col] = cancel
	return batchCtx, nil
}

func (o *Orchestrator) endBatch(col core.ColumnID) {
	o.mu.Lock()
	cancel, ok := o.cancels[col]
	delete(o.cancels, col)
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// buildJobs queues one job per eligible row. Empty source cells stay Idle;
// manual overrides are skipped unless forced.
func (o *Orchestrator) buildJobs(col core.ColumnID, inst *core.ColumnInstruction, source []string, force bool, summary *ApplySummary) []job {
	var jobs []job
	for row, value := range source {
		ref := core.CellRef{Row: row, Col: col}
		if value == "" {
			continue
		}
		cell := o.tracker.Ensure(ref, value)
		if cell.ManualOverride() && !force {
			summary.Skipped++
			continue
		}
		j, err := o.queueJob(ref, value, inst)
		if err != nil {
			// A cell already queued or in flight belongs to a concurrent
			// regeneration; leave it to its own job.
			summary.Skipped++
			continue
		}
		jobs = append(jobs, j)
	}
	summary.Jobs = len(jobs)
	return jobs
}

// queueJob snapshots the work unit and moves the cell to Queued.
func (o *Orchestrator) queueJob(ref core.CellRef, source string, inst *core.ColumnInstruction) (job, error) {
	o.tracker.Ensure(ref, source)
	if err := o.tracker.Transition(ref, core.CellStateQueued); err != nil {
		return job{}, err
	}
	o.mu.Lock()
	o.generations[ref]++
	gen := o.generations[ref]
	o.mu.Unlock()
	return job{ref: ref, source: source, instruction: inst.Clone(), generation: gen}, nil
}

// current reports whether the job is still the latest one for its cell.
func (o *Orchestrator) current(j job) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generations[j.ref] == j.generation
}

// process runs one job to its terminal state and returns it. Cancellation
// before commit reverts the cell to Idle and reports that state.
func (o *Orchestrator) process(ctx context.Context, j job, contract core.TemplateContract, keys Keys) core.CellState {
	log := o.logger.WithCell(j.ref.String())

	if ctx.Err() != nil {
		o.discard(j)
		return core.CellStateIdle
	}
	if err := o.tracker.Transition(j.ref, core.CellStateInFlight); err != nil {
		// A newer job took over the cell.
		return core.CellStateIdle
	}

	input := core.PromptInput{
		Source:      j.source,
		Instruction: j.instruction.Instruction,
		Params:      j.instruction.Params,
	}

	var note string
	if contract.WantsSearch() {
		var sc *core.SearchContext
		sc, note = o.augmenter.Augment(ctx, j.source, keys.Search)
		input.Search = sc
	}

	payload := contract.BuildPrompt(input)
	resp, err := o.dispatcher.Dispatch(ctx, core.CompletionRequest{
		Payload: payload,
		APIKey:  keys.Completion,
	})
	if err != nil {
		if core.IsCategory(err, core.ErrCatCancelled) || ctx.Err() != nil {
			o.discard(j)
			return core.CellStateIdle
		}
		if !o.current(j) {
			return core.CellStateIdle
		}
		log.Warn("cell processing failed", "error", err)
		if cerr := o.tracker.CommitFailure(j.ref, failureReason(err), ""); cerr != nil {
			log.Error("failure commit rejected", "error", cerr)
		}
		return core.CellStateFailed
	}

	result := parse.Parse(resp.Text, contract.Schema())
	result.AugmentationNote = note

	if ctx.Err() != nil || !o.current(j) {
		// The batch was cancelled or a newer job superseded this one while
		// the network call was in flight; discard the result.
		o.discard(j)
		return core.CellStateIdle
	}
	if result.UsedFallback && result.Answer == "" {
		// Even lenient extraction found nothing; an empty answer must not
		// masquerade as success. The raw response stays on the cell.
		perr := core.ErrParse(fmt.Sprintf("cell %s: no answer recoverable from model response", j.ref))
		log.Warn("cell processing failed", "error", perr)
		if cerr := o.tracker.CommitFailure(j.ref, failureReason(perr), resp.Text); cerr != nil {
			log.Error("failure commit rejected", "error", cerr)
		}
		return core.CellStateFailed
	}
	if err := o.tracker.CommitResult(j.ref, &result); err != nil {
		log.Error("result commit rejected", "error", err)
		return core.CellStateIdle
	}
	log.Debug("cell processed",
		"template", string(j.instruction.TemplateID),
		"fallback", result.UsedFallback)
	return core.CellStateSucceeded
}

// discard reverts a not-yet-committed job's cell to Idle, unless a newer job
// owns the cell.
func (o *Orchestrator) discard(j job) {
	if o.current(j) {
		o.tracker.Revert(j.ref)
	}
}

// failureReason renders an error for cell display.
func failureReason(err error) string {
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		return domErr.Message
	}
	return err.Error()
}

func (o *Orchestrator) publish(event events.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}
