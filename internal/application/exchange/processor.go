package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/infrastructure/commerceml"
	"github.com/shop/backend/internal/infrastructure/logger"
	"github.com/shop/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProgressEvery = 100
	cancelledReason      = "cancelled by operator"
)

// ProcessorConfig holds the knobs of an import run.
type ProcessorConfig struct {
	RootDir string
	// MaxErrors is the number of record errors tolerated before the run aborts.
	MaxErrors        int
	Workers          int
	ProgressEvery    int
	Location         *time.Location
	MaxDocumentBytes int64
	PriceFields      PriceFieldMap
	OrderPrefix      string
}

// Processor drives the passes of import sessions, order_status included.
type Processor struct {
	scope     TransactionScope
	sessions  exchange.SessionRepository
	resolvers *Resolvers
	storage   ObjectStorage
	metrics   *telemetry.SyncMetrics
	cfg       ProcessorConfig
	clock     shared.Clock
	logger    *zap.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorClock replaces the wall clock.
func WithProcessorClock(clock shared.Clock) ProcessorOption {
	return func(p *Processor) { p.clock = clock }
}

// NewProcessor creates a Processor.
func NewProcessor(
	scope TransactionScope,
	sessions exchange.SessionRepository,
	storage ObjectStorage,
	cfg ProcessorConfig,
	logger *zap.Logger,
	opts ...ProcessorOption,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	p := &Processor{
		scope:     scope,
		sessions:  sessions,
		resolvers: NewResolvers(),
		storage:   storage,
		cfg:       cfg,
		clock:     shared.SystemClock,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetMetrics attaches sync metrics.
func (p *Processor) SetMetrics(m *telemetry.SyncMetrics) {
	p.metrics = m
}

// newPassTable builds a fresh handler table. Handlers may keep per-run
// state, so every run gets its own table.
func (p *Processor) newPassTable() PassTable {
	t := PassTable{}
	t.Register(&categoryHandler{resolvers: p.resolvers})
	t.Register(&brandHandler{resolvers: p.resolvers})
	t.Register(&attributeHandler{resolvers: p.resolvers})
	t.Register(&priceTypeHandler{resolvers: p.resolvers, fields: p.cfg.PriceFields})
	t.Register(&productHandler{resolvers: p.resolvers})
	t.Register(&variantHandler{resolvers: p.resolvers})
	t.Register(&priceHandler{resolvers: p.resolvers})
	t.Register(&stockHandler{resolvers: p.resolvers})
	t.Register(&imageHandler{resolvers: p.resolvers, storage: p.storage, root: p.cfg.RootDir})
	t.Register(NewOrderStatusReconciler(p.cfg.OrderPrefix, p.clock, p.metrics))
	return t
}

// runState is the mutable state of one run. Workers touch it only through
// the locked helpers; the driver goroutine saves the session between batches.
type runState struct {
	session   *exchange.ImportSession
	passes    []Pass
	table     PassTable
	logger    *zap.Logger
	mu        sync.Mutex
	processed int
	// feedErrorOwner is the pass that reports reader errors of each directory.
	feedErrorOwner map[FeedDir]Pass
}

func (r *runState) note(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Details.AddNote(msg)
}

// Run executes a pending, started or resumed in-progress session until it
// reaches a terminal state. It returns nil when the session completed.
// When ctx ends without a cancel request the session stays non-terminal so
// it can be resumed from its checkpoint.
func (p *Processor) Run(ctx context.Context, s *exchange.ImportSession) error {
	if !s.IsActive() {
		return fmt.Errorf("%w: session %s is %s", shared.ErrInvalidState, s.ID, s.Status)
	}
	passes := PassesFor(s.ImportType)
	if len(passes) == 0 {
		return fmt.Errorf("%w: import type %s has no passes", shared.ErrInvalidInput, s.ImportType)
	}

	ctx, log := logger.WithSessionID(ctx, p.logger, s.ID.String())
	ctx, log = logger.WithImportType(ctx, log, string(s.ImportType))
	ctx, span := telemetry.StartServiceSpan(ctx, "exchange", "ImportRun",
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, s.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrImportType, string(s.ImportType)))
	defer span.End()

	table := p.newPassTable()
	run := &runState{
		session:        s,
		passes:         passes,
		table:          table,
		logger:         log,
		processed:      s.Details.ProcessedItems,
		feedErrorOwner: feedErrorOwners(table, passes, s.ImportType),
	}

	err := p.execute(ctx, run)
	err = p.finish(ctx, run, err)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	return err
}

func (p *Processor) execute(ctx context.Context, run *runState) error {
	s := run.session
	if s.Status == exchange.SessionStatusPending {
		if err := s.Start(p.clock()); err != nil {
			return err
		}
		if err := p.sessions.Save(ctx, s); err != nil {
			return err
		}
	}
	if s.Status == exchange.SessionStatusStarted {
		total, err := p.countRecords(run)
		if err != nil {
			return err
		}
		if err := s.BeginProcessing(total, p.clock()); err != nil {
			return err
		}
		if err := p.sessions.Save(ctx, s); err != nil {
			return err
		}
		run.logger.Info("Import started", zap.Int("total_items", total))
	} else if s.Details.Checkpoint != nil {
		run.logger.Info("Resuming import",
			zap.Strings("completed_passes", s.Details.Checkpoint.CompletedPasses),
			zap.String("pass", s.Details.Checkpoint.Pass),
			zap.Int("offset", s.Details.Checkpoint.Offset))
	}

	for _, pass := range run.passes {
		cp := s.Details.Checkpoint
		if cp.PassDone(string(pass)) {
			continue
		}
		h, err := run.table.Handler(pass)
		if err != nil {
			return err
		}
		skip := 0
		if cp != nil && cp.Pass == string(pass) {
			skip = cp.Offset
		}
		telemetry.AddEvent(trace.SpanFromContext(ctx), "pass.start",
			telemetry.SpanAttrPass, string(pass), "offset", skip)
		if err := p.runPass(ctx, run, h, skip); err != nil {
			return err
		}
	}
	return nil
}

// countRecords sums the records every remaining pass will see.
func (p *Processor) countRecords(run *runState) (int, error) {
	total := 0
	for _, pass := range run.passes {
		if run.session.Details.Checkpoint.PassDone(string(pass)) {
			continue
		}
		h, err := run.table.Handler(pass)
		if err != nil {
			return 0, err
		}
		for _, dir := range feedsFor(h, run.session.ImportType) {
			sources, err := commerceml.DirSources(filepath.Join(p.cfg.RootDir, string(dir)))
			if err != nil {
				return 0, &FatalFeedError{Reason: "cannot list " + string(dir), Err: err}
			}
			for _, src := range sources {
				n, err := commerceml.Count(src, dir.Kind(), h.Accepts, p.readerOptions()...)
				if err != nil {
					return 0, &FatalFeedError{Reason: fmt.Sprintf("document %s/%s", dir, src.Name()), Err: err}
				}
				total += n
			}
		}
	}
	return total, nil
}

func (p *Processor) readerOptions() []commerceml.Option {
	opts := []commerceml.Option{commerceml.WithLocation(p.cfg.Location)}
	if p.cfg.MaxDocumentBytes > 0 {
		opts = append(opts, commerceml.WithMaxBytes(p.cfg.MaxDocumentBytes))
	}
	return opts
}

// passCursor tracks the position of a pass across its documents.
type passCursor struct {
	file   string
	offset int
	skip   int
}

func (p *Processor) runPass(ctx context.Context, run *runState, h PassHandler, skip int) error {
	start := p.clock()
	run.logger.Info("Pass started", zap.String("pass", h.Pass().String()), zap.Int("skip", skip))

	if b, ok := h.(passBeginner); ok {
		if err := b.Begin(ctx, run.note); err != nil {
			return err
		}
	}

	cur := &passCursor{skip: skip}
	for _, dir := range feedsFor(h, run.session.ImportType) {
		sources, err := commerceml.DirSources(filepath.Join(p.cfg.RootDir, string(dir)))
		if err != nil {
			return &FatalFeedError{Reason: "cannot list " + string(dir), Err: err}
		}
		for _, src := range sources {
			cur.file = string(dir) + "/" + src.Name()
			if err := p.runSource(ctx, run, h, dir, src, cur); err != nil {
				return err
			}
		}
	}

	cp := run.session.Details.Checkpoint
	completed := []string{}
	if cp != nil {
		completed = append(completed, cp.CompletedPasses...)
	}
	completed = append(completed, h.Pass().String())
	if err := p.flush(ctx, run, exchange.Checkpoint{CompletedPasses: completed}); err != nil {
		return err
	}

	stats := run.session.Details.Stats(h.Kind())
	run.logger.Info("Pass finished",
		zap.String("pass", h.Pass().String()),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("aliased", stats.Aliased),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", p.clock().Sub(start)))
	return nil
}

func (p *Processor) runSource(ctx context.Context, run *runState, h PassHandler, dir FeedDir, src commerceml.Source, cur *passCursor) error {
	rc, err := src.Open()
	if err != nil {
		return &FatalFeedError{Reason: "cannot open " + cur.file, Err: err}
	}
	defer rc.Close()

	reader, err := commerceml.NewReader(rc, dir.Kind(), p.readerOptions()...)
	if err != nil {
		return &FatalFeedError{Reason: "document " + cur.file, Err: err}
	}

	ownsFeedErrors := run.feedErrorOwner[dir] == h.Pass()
	batch := make([]commerceml.Record, 0, p.cfg.ProgressEvery)
	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if commerceml.IsRecordError(err) {
				// Errors ahead of the checkpoint were counted by the interrupted attempt.
				if ownsFeedErrors && cur.offset >= cur.skip {
					if err := p.recordIssue(ctx, run, h, classify(err, commerceml.Position{})); err != nil {
						return err
					}
				}
				continue
			}
			return &FatalFeedError{Reason: "document " + cur.file, Err: err}
		}
		if !h.Accepts(rec.Type()) {
			continue
		}
		cur.offset++
		if cur.offset <= cur.skip {
			continue
		}
		batch = append(batch, rec)
		if len(batch) < p.cfg.ProgressEvery {
			continue
		}
		if err := p.applyBatch(ctx, run, h, batch); err != nil {
			return err
		}
		batch = batch[:0]
		if err := p.flushPass(ctx, run, h, cur); err != nil {
			return err
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := p.applyBatch(ctx, run, h, batch); err != nil {
		return err
	}
	return p.flushPass(ctx, run, h, cur)
}

// feedErrorOwners assigns each feed directory to the first pass reading it.
// Completed passes keep their directories on resume.
func feedErrorOwners(table PassTable, passes []Pass, importType exchange.ImportType) map[FeedDir]Pass {
	owners := make(map[FeedDir]Pass)
	for _, pass := range passes {
		h, err := table.Handler(pass)
		if err != nil {
			continue
		}
		for _, dir := range feedsFor(h, importType) {
			if _, ok := owners[dir]; !ok {
				owners[dir] = pass
			}
		}
	}
	return owners
}

// applyBatch applies records sequentially, or on the worker pool when the
// pass allows it. Only a fatal error stops the batch.
func (p *Processor) applyBatch(ctx context.Context, run *runState, h PassHandler, batch []commerceml.Record) error {
	if !h.ParallelSafe() || p.cfg.Workers <= 1 || len(batch) == 1 {
		for _, rec := range batch {
			if err := p.applyRecord(ctx, run, h, rec); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, rec := range batch {
		g.Go(func() error {
			return p.applyRecord(gctx, run, h, rec)
		})
	}
	return g.Wait()
}

// applyRecord runs one record in its own transaction.
func (p *Processor) applyRecord(ctx context.Context, run *runState, h PassHandler, rec commerceml.Record) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	var outcome Outcome
	err := p.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := h.Process(ctx, repos, rec)
		if err != nil {
			return err
		}
		outcome = o
		return nil
	})
	if err == nil {
		run.mu.Lock()
		outcome.apply(run.session.Details.Stats(h.Kind()))
		run.processed++
		run.mu.Unlock()
		p.metrics.RecordOutcome(ctx, string(run.session.ImportType), h.Pass().String(), string(outcome))
		return nil
	}
	if ctxErr := checkCancelled(ctx); ctxErr != nil {
		return ctxErr
	}
	issue := classify(err, rec.Pos())
	if issue == nil {
		return err
	}
	run.mu.Lock()
	run.processed++
	run.mu.Unlock()
	return p.recordIssue(ctx, run, h, issue)
}

// recordIssue counts a record error and enforces the error budget.
func (p *Processor) recordIssue(ctx context.Context, run *runState, h PassHandler, issue *RecordError) error {
	run.mu.Lock()
	d := &run.session.Details
	d.AddIssue(exchange.RecordIssue{
		Pass:       h.Pass().String(),
		Line:       issue.Line,
		ExternalID: issue.ExternalID,
		Code:       issue.Code,
		Message:    issue.Message,
	})
	d.Stats(h.Kind()).Errors++
	count := d.ErrorCount
	run.mu.Unlock()

	run.logger.Warn("Record rejected",
		zap.String("pass", h.Pass().String()),
		zap.Int("line", issue.Line),
		zap.String("external_id", issue.ExternalID),
		zap.String("code", issue.Code),
		zap.String("message", issue.Message))
	p.metrics.RecordRecordError(ctx, string(run.session.ImportType), h.Pass().String(), issue.Code)

	if count > p.cfg.MaxErrors {
		return &FatalFeedError{Reason: fmt.Sprintf("error budget exceeded: %d record errors, max %d", count, p.cfg.MaxErrors)}
	}
	return nil
}

func (p *Processor) flushPass(ctx context.Context, run *runState, h PassHandler, cur *passCursor) error {
	var completed []string
	if cp := run.session.Details.Checkpoint; cp != nil {
		completed = cp.CompletedPasses
	}
	return p.flush(ctx, run, exchange.Checkpoint{
		CompletedPasses: completed,
		Pass:            h.Pass().String(),
		File:            cur.file,
		Offset:          cur.offset,
	})
}

// flush persists progress and then honours a durable cancel request.
func (p *Processor) flush(ctx context.Context, run *runState, cp exchange.Checkpoint) error {
	run.mu.Lock()
	processed := run.processed
	run.mu.Unlock()

	s := run.session
	if err := s.Progress(processed, cp, p.clock()); err != nil {
		return err
	}
	if err := p.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	cancelled, err := p.sessions.IsCancelRequested(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("check cancel flag: %w", err)
	}
	if cancelled {
		return ErrCancelled
	}
	return nil
}

// finish moves the session to its terminal state according to err.
func (p *Processor) finish(ctx context.Context, run *runState, err error) error {
	s := run.session
	saveCtx := context.WithoutCancel(ctx)
	now := p.clock()

	cancelled := errors.Is(err, ErrCancelled) || errors.Is(context.Cause(ctx), ErrCancelled)
	switch {
	case err == nil:
		if cerr := s.Complete(now); cerr != nil {
			return cerr
		}
	case errors.Is(err, shared.ErrConcurrencyConflict):
		run.logger.Warn("Session was modified elsewhere, stopping", zap.Error(err))
		return err
	case !cancelled && ctx.Err() != nil:
		run.logger.Warn("Import interrupted, session left resumable", zap.Error(err))
		return err
	case cancelled:
		if ferr := s.Fail(cancelledReason, now); ferr != nil {
			return ferr
		}
		err = ErrCancelled
	default:
		if ferr := s.Fail(err.Error(), now); ferr != nil {
			return errors.Join(err, ferr)
		}
	}

	run.mu.Lock()
	s.Details.ProcessedItems = run.processed
	run.mu.Unlock()
	if serr := p.sessions.Save(saveCtx, s); serr != nil {
		run.logger.Error("Failed to save finished session", zap.Error(serr))
		return errors.Join(err, serr)
	}

	if s.Status == exchange.SessionStatusCompleted {
		run.logger.Info("Import completed",
			zap.Int("processed", s.Details.ProcessedItems),
			zap.Int("errors", s.Details.ErrorCount))
	} else {
		run.logger.Error("Import failed", zap.String("reason", s.ErrorMessage))
	}
	p.metrics.RecordSessionFinished(ctx, string(s.ImportType), string(s.Status), sessionDuration(s, now))
	return err
}

func checkCancelled(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), ErrCancelled) {
		return ErrCancelled
	}
	return ctx.Err()
}

func sessionDuration(s *exchange.ImportSession, now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	return now.Sub(*s.StartedAt)
}
