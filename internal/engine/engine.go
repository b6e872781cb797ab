// Package engine implements the single-threaded cooperative operation
// surface over graph, policy, activation, and manifest: every mutating and
// reading operation is serialized through one logical writer queue so the
// other packages never need their own locks.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"memengine/internal/activation"
	"memengine/internal/clock"
	"memengine/internal/config"
	"memengine/internal/graph"
	"memengine/internal/logging"
	"memengine/internal/manifest"
	"memengine/internal/policy"
	"memengine/internal/store"
	"memengine/internal/summarizer"
)

// ErrStopped is returned by operations submitted after Stop has been called.
var ErrStopped = errors.New("engine stopped")

const sessionRingCapacity = 200

// Engine wires Graph, Manager, activation.Engine, Store, and the manifest
// Generator behind the queue described in the Operation Surface. All of its
// exported operation methods are safe to call concurrently: they each round
// -trip through the single writer goroutine.
type Engine struct {
	cfg   *config.Config
	clock clock.Clock

	graph      *graph.Graph
	policy     *policy.Manager
	activation *activation.Engine
	store      *store.Store
	manifest   *manifest.Generator

	id   string
	born int64

	sessions []activation.SessionRecord
	history  []store.HistoryEntry

	reqCh  chan request
	stopCh chan struct{}
	doneCh chan struct{}
}

type request struct {
	fn       func() (interface{}, error)
	resultCh chan result
}

type result struct {
	value interface{}
	err   error
}

// New constructs an Engine, loading prior state from cfg.Store if present.
func New(cfg *config.Config, c clock.Clock, evaluator policy.Evaluator, summ summarizer.Summarizer) (*Engine, error) {
	st := store.New(storePath(cfg))
	now := c.NowMs()

	loaded, err := st.Load(now)
	if err != nil {
		return nil, fmt.Errorf("loading store: %w", err)
	}

	g := graph.New(c, cfg.Activation.EdgeCap, cfg.Activation.EdgeEpsilon)
	pol := policy.NewManager(c, evaluator, policy.Params{
		HalfLifeDays:        cfg.Activation.HalfLifeDays,
		ActivationSteps:     cfg.Activation.Steps,
		ActivationDecay:     cfg.Activation.Decay,
		ActivationThreshold: cfg.Activation.Threshold,
		ReinforceDelta:      cfg.Activation.ReinforceDelta,
		AttributionWindow:   cfg.Policy.AttributionWindow,
	})

	e := &Engine{
		cfg:        cfg,
		clock:      c,
		graph:      g,
		policy:     pol,
		activation: activation.New(g, pol, c),
		store:      st,
		id:         uuid.NewString(),
		born:       now,
		reqCh:      make(chan request),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	if loaded != nil {
		e.id = loaded.ID
		e.born = loaded.Born
		for _, item := range loaded.Items {
			g.LoadItem(item)
		}
		for _, edge := range loaded.Edges {
			if !g.LoadEdge(edge) {
				logging.Store("dropped dangling edge %s->%s on load", edge.From, edge.To)
				e.appendHistory("load_repair", fmt.Sprintf("%s->%s", edge.From, edge.To), "dropped dangling edge")
			}
		}
		pol.LoadFrom(loaded.PolicyVersions, loaded.ActivePolicy, loaded.PolicyParams)
		e.sessions = loaded.RecentSessions
		e.history = loaded.History
	}

	e.manifest = manifest.New(c, summ, manifest.Config{
		TTL:               time.Duration(cfg.Manifest.TTLSeconds) * time.Second,
		InvalidationCount: int64(cfg.Manifest.InvalidationCount),
		TopCommunities:    cfg.Manifest.TopCommunities,
		Epsilon:           cfg.Activation.EdgeEpsilon,
	})

	go e.run()
	return e, nil
}

func storePath(cfg *config.Config) string {
	return filepath.Join(cfg.Store.StateDir, cfg.Store.SnapshotFile)
}

func (e *Engine) run() {
	for {
		select {
		case req := <-e.reqCh:
			v, err := req.fn()
			req.resultCh <- result{value: v, err: err}
		case <-e.stopCh:
			close(e.doneCh)
			return
		}
	}
}

// do submits fn to the writer queue and blocks for its result. Every
// exported operation method is built on top of this, so all of them are
// totally ordered against one another.
func (e *Engine) do(fn func() (interface{}, error)) (interface{}, error) {
	resultCh := make(chan result, 1)
	select {
	case e.reqCh <- request{fn: fn, resultCh: resultCh}:
	case <-e.stopCh:
		return nil, ErrStopped
	}
	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-e.doneCh:
		return nil, ErrStopped
	}
}

// Stop shuts down the writer goroutine and waits for it to exit; queued
// requests are not drained. Pending calls to do() that haven't been
// accepted yet fail with ErrStopped.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

func (e *Engine) appendHistory(op, args, resultSummary string) {
	e.history = append(e.history, store.HistoryEntry{
		At:            e.clock.NowMs(),
		Op:            op,
		ArgsSummary:   args,
		ResultSummary: resultSummary,
	})
}
