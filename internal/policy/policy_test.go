package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memengine/internal/clock"
)

func newTestManager() *Manager {
	c := clock.NewFixed(1000)
	return NewManager(c, NewSexprEvaluator(time.Second), Params{
		HalfLifeDays:        14,
		ActivationSteps:     3,
		ActivationDecay:     0.7,
		ActivationThreshold: 0.05,
		ReinforceDelta:      0.1,
		AttributionWindow:   20,
	})
}

func TestDefaultVersionsInstalledAndActive(t *testing.T) {
	m := newTestManager()
	_, active := m.GetPolicy()
	require.Len(t, active, 3)
	require.Contains(t, active, FuncDecay)
	require.Contains(t, active, FuncRecallScore)
	require.Contains(t, active, FuncExploration)
}

func TestSetPolicyFnRejectsInvalidSource(t *testing.T) {
	m := newTestManager()
	_, err := m.SetPolicyFn(context.Background(), FuncRecallScore, "(lambda (a r i ac s f) (bogus a))")
	require.ErrorIs(t, err, ErrProbeValidation)
}

func TestSetPolicyFnAppendsAndActivatesNewVersion(t *testing.T) {
	m := newTestManager()
	vA, err := m.SetPolicyFn(context.Background(), FuncRecallScore, "(lambda (a r i ac s f) a)")
	require.NoError(t, err)

	active, err := m.ActiveVersionID(FuncRecallScore)
	require.NoError(t, err)
	require.Equal(t, vA, active)
}

func TestRevertRoundTrip(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	vA, err := m.SetPolicyFn(ctx, FuncRecallScore, "(lambda (a r i ac s f) a)")
	require.NoError(t, err)

	scoreUnderA, err := m.Evaluate(ctx, FuncRecallScore, []Arg{Num(0.5), Num(0.9), Num(0.8), Num(3), Num(1), Num(0)})
	require.NoError(t, err)

	_, err = m.SetPolicyFn(ctx, FuncRecallScore, "(lambda (a r i ac s f) (+ a (* 10 i)))")
	require.NoError(t, err)

	scoreUnderB, err := m.Evaluate(ctx, FuncRecallScore, []Arg{Num(0.5), Num(0.9), Num(0.8), Num(3), Num(1), Num(0)})
	require.NoError(t, err)
	require.NotEqual(t, scoreUnderA, scoreUnderB)

	require.NoError(t, m.RevertPolicyFn(FuncRecallScore, vA))
	active, err := m.ActiveVersionID(FuncRecallScore)
	require.NoError(t, err)
	require.Equal(t, vA, active)

	scoreUnderRevertedA, err := m.Evaluate(ctx, FuncRecallScore, []Arg{Num(0.5), Num(0.9), Num(0.8), Num(3), Num(1), Num(0)})
	require.NoError(t, err)
	require.Equal(t, scoreUnderA, scoreUnderRevertedA)
}

func TestRevertUnknownVersionFails(t *testing.T) {
	m := newTestManager()
	err := m.RevertPolicyFn(FuncRecallScore, "does-not-exist")
	require.ErrorIs(t, err, ErrUnknownPolicyVersion)
}

func TestRecordOutcomeAccumulates(t *testing.T) {
	m := newTestManager()
	id, err := m.ActiveVersionID(FuncDecay)
	require.NoError(t, err)

	require.NoError(t, m.RecordOutcome(id, true))
	require.NoError(t, m.RecordOutcome(id, true))
	require.NoError(t, m.RecordOutcome(id, false))

	v, ok := m.Version(id)
	require.True(t, ok)
	require.Equal(t, int64(2), v.Success)
	require.Equal(t, int64(1), v.Fail)
}

func TestDefaultDecayMatchesFormula(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	v, err := m.Evaluate(ctx, FuncDecay, []Arg{Num(2), Num(1), Num(0.5), Num(0.7), Num(1000), Num(86400000)})
	require.NoError(t, err)
	require.InDelta(t, 86400000*(0.5+1.5*(2.0/4.0)), v, 1e-6)
}

func TestExplorationDefaultReturnsNoSubstitution(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	tail := []float64{0.1, 0.2, 0.3}
	v, err := m.Evaluate(ctx, FuncExploration, []Arg{Num(5), Num(3), Vec(tail), Vec(tail), Vec(tail), Vec(tail), Vec(tail), Vec(tail)})
	require.NoError(t, err)
	require.Equal(t, -1.0, v)
}
