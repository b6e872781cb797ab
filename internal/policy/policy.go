// Package policy implements the homoiconic scoring/decay/exploration layer:
// versioned, content-hashed expressions evaluated by a pluggable sandboxed
// Evaluator, with feedback attributed back to the sessions that used them.
package policy

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"memengine/internal/clock"
	"memengine/internal/logging"
)

// FunctionName is one of the three homoiconic policy slots.
type FunctionName string

const (
	FuncDecay       FunctionName = "decay"
	FuncRecallScore FunctionName = "recallScore"
	FuncExploration FunctionName = "exploration"
)

var (
	ErrUnknownFunction      = errors.New("unknown policy function name")
	ErrUnknownPolicyVersion = errors.New("unknown policy version")
	ErrProbeValidation      = errors.New("policy expression failed probe validation")
)

// Version is a single versioned policy expression.
type Version struct {
	Name         FunctionName
	VersionID    string
	Source       string
	CreatedAt    int64
	Success      int64
	Fail         int64
	SupersededBy string
}

// Params holds the numeric policy parameters that are not expressions.
type Params struct {
	HalfLifeDays         float64
	ActivationSteps      int
	ActivationDecay      float64
	ActivationThreshold  float64
	ReinforceDelta       float64
	AttributionWindow    int
}

// Manager owns policy versions, the currently active selection per function,
// and the numeric parameters. It is not safe for concurrent use; callers
// serialize access through the engine's writer queue.
type Manager struct {
	clock     clock.Clock
	evaluator Evaluator

	versions map[string]*Version   // versionID -> version
	byName   map[FunctionName][]string // name -> ordered versionIDs (insertion order)
	active   map[FunctionName]string   // name -> active versionID

	params Params
}

func defaultSources() map[FunctionName]string {
	return map[FunctionName]string{
		FuncDecay:       "(lambda (success fail energy importance recency_ms base_half_ms) (* base_half_ms (+ 0.5 (* 1.5 (/ success (+ success fail 1))))))",
		FuncRecallScore: "(lambda (a r i ac s f) (* a (+ r (* 0.1 i))))",
		FuncExploration: "(lambda (limit tailn acts recs imps accs succs fails) -1)",
	}
}

// probeArgs returns a fixed argument vector per function, used to validate
// a candidate expression on set without ever executing it against live state.
func probeArgs(name FunctionName) []Arg {
	switch name {
	case FuncDecay:
		return []Arg{Num(2), Num(1), Num(0.5), Num(0.7), Num(1000), Num(86400000)}
	case FuncRecallScore:
		return []Arg{Num(0.8), Num(0.9), Num(0.7), Num(3), Num(2), Num(0)}
	case FuncExploration:
		tail := make([]float64, 4)
		for i := range tail {
			tail[i] = 0.1 * float64(i+1)
		}
		return []Arg{Num(5), Num(4), Vec(tail), Vec(tail), Vec(tail), Vec(tail), Vec(tail), Vec(tail)}
	default:
		return nil
	}
}

// NewManager creates a Manager with the built-in default expression for each
// function, installed as its first (and initially active) version.
func NewManager(c clock.Clock, evaluator Evaluator, params Params) *Manager {
	m := &Manager{
		clock:     c,
		evaluator: evaluator,
		versions:  make(map[string]*Version),
		byName:    make(map[FunctionName][]string),
		active:    make(map[FunctionName]string),
		params:    params,
	}

	now := c.NowMs()
	for name, source := range defaultSources() {
		id := hashSource(source)
		m.versions[id] = &Version{Name: name, VersionID: id, Source: source, CreatedAt: now}
		m.byName[name] = []string{id}
		m.active[name] = id
	}
	return m
}

func hashSource(source string) string {
	sum := sha1.Sum([]byte(source))
	return hex.EncodeToString(sum[:])
}

// GetPolicy returns the numeric params and the active versionId per function.
func (m *Manager) GetPolicy() (Params, map[FunctionName]string) {
	active := make(map[FunctionName]string, len(m.active))
	for k, v := range m.active {
		active[k] = v
	}
	return m.params, active
}

// SetParams replaces the numeric parameters wholesale.
func (m *Manager) SetParams(p Params) {
	m.params = p
}

// ActiveVersionID returns the currently active versionId for name.
func (m *Manager) ActiveVersionID(name FunctionName) (string, error) {
	id, ok := m.active[name]
	if !ok {
		return "", fmt.Errorf("active version for %s: %w", name, ErrUnknownFunction)
	}
	return id, nil
}

// Version returns the version with the given id, if it exists.
func (m *Manager) Version(id string) (*Version, bool) {
	v, ok := m.versions[id]
	return v, ok
}

// SetPolicyFn computes source's SHA-1, validates it against a fixed probe
// vector, appends a new Version if the hash is unseen, and makes it active.
// The source is never executed against live arguments on set — only the
// probe.
func (m *Manager) SetPolicyFn(ctx context.Context, name FunctionName, source string) (string, error) {
	if _, ok := defaultSources()[name]; !ok {
		return "", fmt.Errorf("set policy fn %s: %w", name, ErrUnknownFunction)
	}

	probe := probeArgs(name)
	if _, err := m.evaluator.Eval(ctx, source, probe); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProbeValidation, err)
	}

	id := hashSource(source)
	if _, exists := m.versions[id]; !exists {
		m.versions[id] = &Version{
			Name:      name,
			VersionID: id,
			Source:    source,
			CreatedAt: m.clock.NowMs(),
		}
		m.byName[name] = append(m.byName[name], id)
	}

	m.activate(name, id)
	logging.PolicyDebug("set policy fn %s -> %s", name, id)
	return id, nil
}

// RevertPolicyFn makes an existing version active again.
func (m *Manager) RevertPolicyFn(name FunctionName, versionID string) error {
	v, ok := m.versions[versionID]
	if !ok || v.Name != name {
		return fmt.Errorf("revert %s to %s: %w", name, versionID, ErrUnknownPolicyVersion)
	}
	m.activate(name, versionID)
	logging.PolicyDebug("reverted policy fn %s -> %s", name, versionID)
	return nil
}

func (m *Manager) activate(name FunctionName, newID string) {
	if prevID, ok := m.active[name]; ok && prevID != newID {
		if prev, exists := m.versions[prevID]; exists {
			prev.SupersededBy = newID
		}
	}
	m.active[name] = newID
}

// Evaluate runs the active expression for name against args. On error the
// caller is expected to fall back per §7 (activation-as-score for
// recallScore, default decay, no exploration) and to call RecordOutcome with
// success=false for the active version.
func (m *Manager) Evaluate(ctx context.Context, name FunctionName, args []Arg) (float64, error) {
	id, ok := m.active[name]
	if !ok {
		return 0, fmt.Errorf("evaluate %s: %w", name, ErrUnknownFunction)
	}
	v := m.versions[id]
	return m.evaluator.Eval(ctx, v.Source, args)
}

// RecordOutcome increments the success or fail counter on a specific
// version, used both for direct evaluation failures and for feedback
// attribution.
func (m *Manager) RecordOutcome(versionID string, success bool) error {
	v, ok := m.versions[versionID]
	if !ok {
		return fmt.Errorf("record outcome %s: %w", versionID, ErrUnknownPolicyVersion)
	}
	if success {
		v.Success++
	} else {
		v.Fail++
	}
	return nil
}

// ListVersions returns every stored version across all functions.
func (m *Manager) ListVersions() []*Version {
	out := make([]*Version, 0, len(m.versions))
	for _, names := range m.byName {
		for _, id := range names {
			out = append(out, m.versions[id])
		}
	}
	return out
}

// Export returns the manager's full state for persistence: all versions
// (each function's versions in insertion order; the order of functions is
// not defined), the active selection per function, and the numeric params.
func (m *Manager) Export() (versions []*Version, active map[FunctionName]string, params Params) {
	for name, ids := range m.byName {
		for _, id := range ids {
			versions = append(versions, m.versions[id])
		}
		_ = name
	}
	active = make(map[FunctionName]string, len(m.active))
	for k, v := range m.active {
		active[k] = v
	}
	return versions, active, m.params
}

// LoadFrom replaces the manager's state wholesale with previously exported
// state. I3/I4: versions are restored append-only and active selections must
// reference an existing versionId, otherwise that function's version falls
// back to whichever default the manager was constructed with.
func (m *Manager) LoadFrom(versions []*Version, active map[FunctionName]string, params Params) {
	previous := m.versions
	m.versions = make(map[string]*Version, len(versions))
	m.byName = make(map[FunctionName][]string)
	for _, v := range versions {
		m.versions[v.VersionID] = v
		m.byName[v.Name] = append(m.byName[v.Name], v.VersionID)
	}
	for name, id := range active {
		if _, ok := m.versions[id]; ok {
			m.active[name] = id
		}
	}
	for name, id := range m.active {
		if _, ok := m.versions[id]; !ok {
			if v, had := previous[id]; had {
				m.versions[id] = v
				m.byName[name] = append(m.byName[name], id)
			}
		}
	}
	m.params = params
}
