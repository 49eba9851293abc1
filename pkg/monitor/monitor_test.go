package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hedera-swap/pkg/metrics"
	"hedera-swap/pkg/types"
)

type step struct {
	record *types.TransactionRecord
	err    error
}

type scriptedIndexer struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedIndexer) Transaction(context.Context, string) (*types.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > len(s.steps) {
		return nil, ErrNotFound
	}
	st := s.steps[s.calls-1]
	return st.record, st.err
}

func fastConfig() Config {
	return Config{
		InitialInterval: time.Millisecond,
		Multiplier:      1.4,
		MaxInterval:     2 * time.Millisecond,
		MaxAttempts:     12,
	}
}

func pollCount(t *testing.T, r *metrics.Recorder, outcome string) float64 {
	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "hedera_swap_monitor_polls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestScheduleDefaults(t *testing.T) {
	schedule := Schedule(DefaultConfig())
	require.Len(t, schedule, 11)
	require.Equal(t, 2*time.Second, schedule[0])
	require.Greater(t, schedule[1], schedule[0])

	for i, d := range schedule {
		require.LessOrEqual(t, d, 8*time.Second)
		if i > 0 {
			require.GreaterOrEqual(t, d, schedule[i-1])
			if schedule[i-1] < 8*time.Second {
				require.Greater(t, d, schedule[i-1])
			}
		}
	}
	require.Equal(t, 8*time.Second, schedule[len(schedule)-1])
}

func TestSuccessOnThirdPollStopsPolling(t *testing.T) {
	indexer := &scriptedIndexer{steps: []step{
		{err: ErrNotFound},
		{err: ErrNotFound},
		{record: &types.TransactionRecord{ID: "0.0.1234@1700000000.000000001", ResultCode: "SUCCESS", ConsensusTimestamp: "1700000003.123456789"}},
	}}
	recorder := metrics.NewRecorder("")
	m := New(fastConfig(), indexer, recorder, nil)

	var progress []int
	status := m.Wait(context.Background(), "0.0.1234@1700000000.000000001", func(attempt, max int) {
		require.Equal(t, 12, max)
		progress = append(progress, attempt)
	})

	require.True(t, status.Success)
	require.Equal(t, types.StatusSuccess, status.Status)
	require.Equal(t, "1700000003.123456789", status.ConsensusTimestamp)
	require.Equal(t, 3, status.Attempts)
	require.Equal(t, 3, indexer.calls)
	require.Equal(t, []int{1, 2, 3}, progress)
	require.Equal(t, 2.0, pollCount(t, recorder, "not_found"))
	require.Equal(t, 1.0, pollCount(t, recorder, "found"))
}

func TestExhaustedAttemptsAreUnknown(t *testing.T) {
	indexer := &scriptedIndexer{}
	m := New(fastConfig(), indexer, nil, nil)

	status := m.Wait(context.Background(), "0xabc", nil)
	require.False(t, status.Success)
	require.Equal(t, types.StatusUnknown, status.Status)
	require.NotEqual(t, types.StatusFailed, status.Status)
	require.Equal(t, 12, status.Attempts)
	require.Equal(t, 12, indexer.calls)
}

func TestFailureCodeIsTerminal(t *testing.T) {
	indexer := &scriptedIndexer{steps: []step{
		{record: &types.TransactionRecord{ResultCode: "CONTRACT_REVERT_EXECUTED", ErrorMessage: "INSUFFICIENT_OUTPUT_AMOUNT"}},
	}}
	m := New(fastConfig(), indexer, nil, nil)

	status := m.Wait(context.Background(), "0xabc", nil)
	require.False(t, status.Success)
	require.Equal(t, types.StatusFailed, status.Status)
	require.Equal(t, "CONTRACT_REVERT_EXECUTED", status.ResultCode)
	require.Equal(t, "INSUFFICIENT_OUTPUT_AMOUNT", status.Detail)
	require.Equal(t, 1, indexer.calls)
}

func TestIndexerErrorsAreRetried(t *testing.T) {
	indexer := &scriptedIndexer{steps: []step{
		{err: errors.New("connection reset")},
		{err: errors.New("502 bad gateway")},
		{record: &types.TransactionRecord{ResultCode: "SUCCESS"}},
	}}
	recorder := metrics.NewRecorder("")
	m := New(fastConfig(), indexer, recorder, nil)

	status := m.Wait(context.Background(), "0xabc", nil)
	require.True(t, status.Success)
	require.Equal(t, 3, indexer.calls)
	require.Equal(t, 2.0, pollCount(t, recorder, "error"))
}

func TestErrorOnFinalAttemptIsUnknown(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 3
	indexer := &scriptedIndexer{steps: []step{
		{err: ErrNotFound},
		{err: ErrNotFound},
		{err: errors.New("timeout")},
	}}
	m := New(cfg, indexer, nil, nil)

	status := m.Wait(context.Background(), "0xabc", nil)
	require.Equal(t, types.StatusUnknown, status.Status)
	require.Equal(t, 3, status.Attempts)
}

func TestCancelledDuringInitialDelay(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	indexer := &scriptedIndexer{}
	m := New(cfg, indexer, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := m.Wait(ctx, "0xabc", nil)
	require.Equal(t, types.StatusUnknown, status.Status)
	require.Zero(t, indexer.calls)
}
