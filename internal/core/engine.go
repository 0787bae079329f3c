package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/listingest/internal/logging"
)

// DefaultTargetPoolSize is the number of workers a task upload is spread
// across when no other size is configured.
const DefaultTargetPoolSize = 5

// EngineConfig holds the tunables of the ingestion pipeline.
type EngineConfig struct {
	Schema         SchemaOptions
	Decode         DecodeOptions
	TargetPoolSize int  // <= 0 uses every available worker
	AtomicPersist  bool // one transaction per upload when the store supports it
}

// Engine runs uploads through decode, validation, distribution and
// persistence while tracking each attempt.
type Engine struct {
	store   Store
	tracker *Tracker
	writer  *Writer
	cfg     EngineConfig
	now     func() time.Time
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, cfg EngineConfig) *Engine {
	if cfg.Schema.Phone.CountryCode == "" {
		cfg.Schema.Phone.CountryCode = DefaultCountryCode
	}
	return &Engine{
		store:   store,
		tracker: NewTracker(store),
		writer:  NewWriter(store, cfg.AtomicPersist),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Ingest processes one file end to end.
//
// Every call that gets past attempt creation leaves exactly one attempt in a
// terminal state. On failure the returned result is still non-nil when an
// attempt was created, so callers can report its UploadID alongside the error.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unknown record kind %q", req.Kind)
	}

	start := e.now()
	attempt, err := e.tracker.Begin(ctx, req.Kind, req.FileName, req.Size, req.OwnerID)
	if err != nil {
		return nil, PersistenceFailure("failed to record upload", err)
	}

	logger := logging.WithFields(ctx,
		"upload_id", attempt.ID(),
		"kind", req.Kind,
		"file", req.FileName,
		"owner", req.OwnerID,
	)
	logger.Info("upload started", "size", req.Size, "format", req.Format)

	result := &IngestResult{UploadID: attempt.ID(), Kind: req.Kind}

	err = attempt.Processing(ctx)
	if err == nil {
		err = e.run(ctx, attempt, req, result)
	}
	if err == nil {
		if cerr := attempt.Complete(ctx); cerr != nil {
			err = PersistenceFailure("failed to finalize upload", cerr)
		}
	}
	result.Duration = e.now().Sub(start)

	if err != nil {
		// Record the failure even if the request context is already done.
		if ferr := attempt.Fail(context.WithoutCancel(ctx), err); ferr != nil {
			logger.Error("failed to record upload failure", "error", ferr)
		}
		logger.Warn("upload failed",
			"error", err,
			"error_kind", KindOf(err),
			"rows_dropped", result.RowsDropped,
			"duration", result.Duration,
		)
		return result, err
	}

	logger.Info("upload completed",
		"records", result.RecordsProcessed,
		"rows_dropped", result.RowsDropped,
		"workers", result.WorkersAssigned,
		"lists", result.ListsCreated,
		"duration", result.Duration,
	)
	return result, nil
}

func (e *Engine) run(ctx context.Context, attempt *Attempt, req IngestRequest, result *IngestResult) error {
	schema, err := SchemaFor(req.Kind, e.cfg.Schema)
	if err != nil {
		return err
	}

	rows, err := Decode(req.Data, req.Format, e.cfg.Decode)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := schema.CheckHeader(rows.Header()); err != nil {
		return err
	}

	var (
		tasks    []Task
		contacts []Contact
	)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("upload cancelled: %w", err)
		}
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		vals, err := schema.Apply(row)
		if err != nil {
			var rf RowValidationFailure
			if errors.As(err, &rf) {
				result.RowsDropped++
				logging.FromContext(ctx).Debug("row dropped",
					"upload_id", attempt.ID(), "line", rf.Line, "field", rf.Field, "reason", rf.Reason)
				continue
			}
			return err
		}

		switch req.Kind {
		case KindTask:
			tasks = append(tasks, vals.Task())
		case KindContact:
			contacts = append(contacts, vals.Contact())
		}
	}

	meta := WriteMeta{
		UploadID:       attempt.ID(),
		SourceFileName: req.FileName,
		OwnerID:        req.OwnerID,
		Now:            e.now().UTC(),
	}

	switch req.Kind {
	case KindTask:
		if len(tasks) == 0 {
			return EmptyValidInputError(result.RowsDropped)
		}
		return e.distribute(ctx, tasks, meta, result)
	default:
		if len(contacts) == 0 {
			return EmptyValidInputError(result.RowsDropped)
		}
		if err := e.writer.WriteContacts(ctx, contacts, meta); err != nil {
			return err
		}
		result.RecordsProcessed = len(contacts)
		return nil
	}
}

func (e *Engine) distribute(ctx context.Context, tasks []Task, meta WriteMeta, result *IngestResult) error {
	workers, err := e.store.ListWorkers(ctx)
	if err != nil {
		return PersistenceFailure("failed to read worker pool", err)
	}
	pool := NewPoolSnapshot(workers, e.now())

	if target := e.cfg.TargetPoolSize; target > 0 && pool.Len() > 0 && pool.Len() < target {
		logging.FromContext(ctx).Warn("fewer workers than target pool size",
			"upload_id", meta.UploadID, "available", pool.Len(), "target", target)
	}

	plan, err := PlanDistribution(tasks, pool, e.cfg.TargetPoolSize)
	if err != nil {
		return err
	}
	result.WorkersAssigned = plan.Workers()

	created, err := e.writer.WriteLists(ctx, plan, meta)
	result.ListsCreated = created
	if err != nil {
		return err
	}
	result.RecordsProcessed = len(tasks)
	return nil
}
