package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
	"hedera-swap/pkg/metrics"
	"hedera-swap/pkg/types"
)

// ErrNotFound is returned by an Indexer that has not seen the transaction yet
var ErrNotFound = errors.New("transaction not found")

var errPending = errors.New("transaction not indexed yet")

// Indexer looks up executed transactions
type Indexer interface {
	Transaction(ctx context.Context, id string) (*types.TransactionRecord, error)
}

// Config controls polling cadence
type Config struct {
	// InitialDelay is waited before the first poll since the indexer lags consensus
	InitialDelay    time.Duration
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultConfig returns the production polling schedule
func DefaultConfig() Config {
	return Config{
		InitialDelay:    4 * time.Second,
		InitialInterval: 2 * time.Second,
		Multiplier:      1.4,
		MaxInterval:     8 * time.Second,
		MaxAttempts:     12,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

func (c Config) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.Multiplier = c.Multiplier
	b.MaxInterval = c.MaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Schedule returns the waits between consecutive polls
func Schedule(cfg Config) []time.Duration {
	cfg = cfg.withDefaults()
	b := cfg.exponential()
	out := make([]time.Duration, 0, cfg.MaxAttempts-1)
	for i := 1; i < cfg.MaxAttempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

// Monitor resolves submitted transactions into a success, failed or unknown verdict
type Monitor struct {
	cfg     Config
	indexer Indexer
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// New creates a new transaction monitor
func New(cfg Config, indexer Indexer, recorder *metrics.Recorder, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg.withDefaults(),
		indexer: indexer,
		metrics: recorder,
		logger:  logging.OrNop(logger).Named("monitor"),
	}
}

// MaxAttempts returns the poll budget
func (m *Monitor) MaxAttempts() int {
	return m.cfg.MaxAttempts
}

// Wait polls the indexer for id until it reports a result code or the attempt budget
// runs out. onProgress, if set, is called before every poll.
func (m *Monitor) Wait(ctx context.Context, id string, onProgress func(attempt, max int)) types.TransactionStatus {
	status := types.TransactionStatus{Status: types.StatusUnknown}
	log := m.logger.With(zap.String("id", id))

	if m.cfg.InitialDelay > 0 {
		timer := time.NewTimer(m.cfg.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn("monitoring cancelled before first poll", zap.Error(ctx.Err()))
			return status
		case <-timer.C:
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		status.Attempts = attempt
		if onProgress != nil {
			onProgress(attempt, m.cfg.MaxAttempts)
		}

		record, err := m.indexer.Transaction(ctx, id)
		switch {
		case err == nil && record != nil:
			m.metrics.Poll("found")
			status = verdict(record, attempt)
			return nil
		case err == nil || errors.Is(err, ErrNotFound):
			m.metrics.Poll("not_found")
			return errPending
		default:
			m.metrics.Poll("error")
			log.Debug("indexer query failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
	}

	notify := func(err error, next time.Duration) {
		log.Debug("transaction not resolved, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.NamedError("reason", err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(m.cfg.exponential(), uint64(m.cfg.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		log.Warn("transaction status unknown",
			zap.Int("attempts", attempt),
			zap.Error(err))
		return types.TransactionStatus{Status: types.StatusUnknown, Attempts: attempt}
	}

	log.Info("transaction resolved",
		zap.String("status", status.Status),
		zap.String("result", status.ResultCode),
		zap.Int("attempts", attempt))
	return status
}

func verdict(record *types.TransactionRecord, attempt int) types.TransactionStatus {
	status := types.TransactionStatus{
		ConsensusTimestamp: record.ConsensusTimestamp,
		ResultCode:         record.ResultCode,
		Detail:             record.ErrorMessage,
		Attempts:           attempt,
	}
	if record.ResultCode == types.ResultSuccess {
		status.Success = true
		status.Status = types.StatusSuccess
	} else {
		status.Status = types.StatusFailed
	}
	return status
}
