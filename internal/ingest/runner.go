// Package ingest runs a full pull of the events feed through the parser
// and the reconciliation engine.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/feed"
	"example.com/campusevents/internal/reconcile"
)

type Fetcher interface {
	Fetch(ctx context.Context, pageSize int) ([]json.RawMessage, error)
}

type Parser interface {
	Parse(raw json.RawMessage) (domain.Candidate, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, c domain.Candidate) (reconcile.Result, error)
}

// Publisher announces ingestion outcomes.
type Publisher interface {
	Publish(eventName string, data interface{}) error
}

// Notice is the payload published for every written event.
type Notice struct {
	EventID     int64     `json:"eventId"`
	LiveWhaleID *int64    `json:"liveWhaleId,omitempty"`
	Action      string    `json:"action"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
}

// Summary tallies one run.
type Summary struct {
	Fetched   int `json:"fetched"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Merged    int `json:"merged"`
	Claimed   int `json:"claimed"`
	Ambiguous int `json:"ambiguous"`
	NotEvents int `json:"notEvents"`
	Errored   int `json:"errored"`
}

type Runner struct {
	Fetcher   Fetcher
	Parser    Parser
	Engine    Reconciler
	Publisher Publisher
	Logger    *zap.Logger
	PageSize  int
}

func NewRunner(f Fetcher, p Parser, e Reconciler, pub Publisher, logger *zap.Logger, pageSize int) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Fetcher: f, Parser: p, Engine: e, Publisher: pub, Logger: logger, PageSize: pageSize}
}

// Run fetches one page and reconciles every record in order. A fetch
// failure aborts the run; a record failure is logged, tallied and skipped.
// Cancellation is checked between records.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	started := time.Now()

	records, err := r.Fetcher.Fetch(ctx, r.PageSize)
	if err != nil {
		return sum, errors.Wrap(err, "ingest")
	}
	sum.Fetched = len(records)

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			r.Logger.Warn("ingest interrupted", zap.Int("processed", i), zap.Int("fetched", sum.Fetched))
			return sum, errors.Wrap(err, "ingest")
		}
		r.process(ctx, i, raw, &sum)
	}

	r.Logger.Info("ingest finished",
		zap.Int("fetched", sum.Fetched),
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
		zap.Int("merged", sum.Merged),
		zap.Int("claimed", sum.Claimed),
		zap.Int("ambiguous", sum.Ambiguous),
		zap.Int("not_events", sum.NotEvents),
		zap.Int("errored", sum.Errored),
		zap.Duration("took", time.Since(started)),
	)
	return sum, nil
}

func (r *Runner) process(ctx context.Context, i int, raw json.RawMessage, sum *Summary) {
	c, err := r.Parser.Parse(raw)
	if errors.Is(err, feed.ErrNotAnEvent) {
		sum.NotEvents++
		return
	}
	if err != nil {
		sum.Errored++
		r.Logger.Warn("record skipped", zap.Int("index", i), zap.Error(err))
		return
	}

	res, err := r.Engine.Reconcile(ctx, c)
	if err != nil {
		sum.Errored++
		r.Logger.Warn("record not reconciled", zap.Int64("live_whale_id", c.ExternalID), zap.Error(err))
		return
	}

	switch res.Action {
	case reconcile.ActionInserted:
		sum.Inserted++
	case reconcile.ActionUpdated:
		sum.Updated++
	case reconcile.ActionMerged:
		sum.Merged++
	case reconcile.ActionSkipped:
		if res.Reason == reconcile.ReasonAmbiguous {
			sum.Ambiguous++
			r.Logger.Info("ambiguous duplicates", zap.Int64("live_whale_id", c.ExternalID), zap.String("title", c.Title))
		} else {
			sum.Claimed++
		}
		return
	}
	r.publish(res)
}

func (r *Runner) publish(res reconcile.Result) {
	if r.Publisher == nil || res.Event == nil {
		return
	}
	n := Notice{
		EventID:     res.Event.ID,
		LiveWhaleID: res.Event.LiveWhaleID,
		Action:      string(res.Action),
		Title:       res.Event.Title,
		Start:       res.Event.Start,
	}
	name := fmt.Sprintf("event.%s", res.Action)
	if err := r.Publisher.Publish(name, n); err != nil {
		r.Logger.Warn("publish failed", zap.String("event", name), zap.Int64("event_id", n.EventID), zap.Error(err))
	}
}
