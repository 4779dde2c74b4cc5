package clickhouse

import (
	"context"
	"errors"
	"sync"
	"time"

	"dexanalytics/internal/config"
	"dexanalytics/internal/domain"
	"dexanalytics/internal/metrics"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"gitlab.com/nevasik7/alerting"
	"gitlab.com/nevasik7/alerting/logger"
)

var ErrWriterClosed = errors.New("clickhouse writer closed")

// Alerter notifies operators when a batch is dropped after all retries
type Alerter interface {
	ErrorfLogAndAlert(message string, args ...interface{})
}

var _ Alerter = (*alerting.Alerting)(nil)

// part of driver.Conn the writer needs
type batchConn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Ping(ctx context.Context) error
}

// Writer appends rows asynchronously: rows are grouped per table and flushed
// when a table reaches BatchMaxRows or every BatchMaxInterval.
type Writer struct {
	log     logger.Logger
	alert   Alerter // optional
	metrics *metrics.Metrics

	conn batchConn
	cfg  config.ClickHouseWriterConfig

	mu       sync.RWMutex
	closed   bool
	inCh     chan Row
	wg       sync.WaitGroup
	nowFn    func() time.Time
	sleepFn  func(time.Duration)
	stopOnce sync.Once
}

func NewWriter(log logger.Logger, alert Alerter, m *metrics.Metrics, conn batchConn, cfg config.ClickHouseWriterConfig) (*Writer, error) {
	if conn == nil {
		return nil, errors.New("clickhouse connection is required to the writer")
	}

	// sane defaults
	if cfg.BatchMaxRows <= 0 {
		cfg.BatchMaxRows = 1000
	}
	if cfg.BatchMaxInterval <= 0 {
		cfg.BatchMaxInterval = 200 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8192
	}

	w := &Writer{
		log:     log,
		alert:   alert,
		metrics: m,
		conn:    conn,
		cfg:     cfg,
		inCh:    make(chan Row, cfg.QueueSize),
		nowFn:   time.Now,
		sleepFn: time.Sleep,
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

func (w *Writer) Enqueue(ctx context.Context, rows ...Row) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	for _, row := range rows {
		select {
		case w.inCh <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (w *Writer) WriteSwap(ctx context.Context, s *domain.Swap) error {
	return w.Enqueue(ctx, SwapRow(s))
}

func (w *Writer) WriteLiquidity(ctx context.Context, kind domain.Kind, c *domain.LiquidityChange) error {
	return w.Enqueue(ctx, LiquidityRow(kind, c))
}

func (w *Writer) WritePoolBuckets(ctx context.Context, buckets []*domain.PoolBucket) error {
	now := w.nowFn()
	rows := make([]Row, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, PoolBucketRow(b, now))
	}
	return w.Enqueue(ctx, rows...)
}

func (w *Writer) Health(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

// Close stops accepting rows and waits for the last flush
func (w *Writer) Close(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.inCh)
		w.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batches := make(map[string][]Row, len(tableColumns))
	ticker := time.NewTicker(w.cfg.BatchMaxInterval)
	defer ticker.Stop()

	flush := func(table string) {
		rows := batches[table]
		if len(rows) == 0 {
			return
		}

		if err := w.insertBatch(context.Background(), table, rows); err != nil {
			w.dropped(table, len(rows), err)
			w.metrics.SinkRows(table, metrics.ResultError, len(rows))
		} else {
			w.metrics.SinkRows(table, metrics.ResultOK, len(rows))
		}
		batches[table] = rows[:0]
	}

	flushAll := func() {
		for table := range batches {
			flush(table)
		}
	}

	for {
		select {
		case row, ok := <-w.inCh:
			if !ok {
				flushAll()
				return
			}

			if _, known := tableColumns[row.Table]; !known {
				w.log.Errorf("Drop row for unknown clickhouse table %s", row.Table)
				continue
			}

			batches[row.Table] = append(batches[row.Table], row)
			if len(batches[row.Table]) >= w.cfg.BatchMaxRows {
				flush(row.Table)
			}
		case <-ticker.C:
			flushAll()
		}
	}
}

func (w *Writer) dropped(table string, n int, err error) {
	const msg = "Failed insert [%d] rows by batch to clickhouse table %s, rows dropped, error=%v"
	if w.alert != nil {
		w.alert.ErrorfLogAndAlert(msg, n, table, err)
		return
	}
	w.log.Errorf(msg, n, table, err)
}

func (w *Writer) insertBatch(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	// repeat with exponential delay
	backoff := w.cfg.RetryBackoff

	var lastErr error

	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		batch, err := w.conn.PrepareBatch(ctx, insertQuery(table))
		if err != nil {
			lastErr = err
			goto retry
		}

		for i := range rows {
			if err = batch.Append(rows[i].Values...); err != nil {
				lastErr = err
				_ = batch.Abort()
				goto retry
			}
		}

		if err = batch.Send(); err != nil {
			lastErr = err
			goto retry
		}
		// success
		return nil

	retry:
		if attempt == w.cfg.MaxRetries {
			break
		}
		w.log.Warnf("Retry insert into %s, attempt=%d, error=%v", table, attempt+1, lastErr)
		w.sleepFn(backoff)
		backoff *= 2
	}

	return lastErr
}
