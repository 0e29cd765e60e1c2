package events

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"grimm.is/rtmirror/internal/clock"
	"grimm.is/rtmirror/internal/logging"

	_ "modernc.org/sqlite"
)

// Aggregator subscribes to table events and records churn (adds and
// deletes per family) in SQLite, rolling raw samples up into hourly buckets.
// Only counts are stored; table contents are always rebuilt from a dump.
type Aggregator struct {
	db    *sql.DB
	hub   *Hub
	clock clock.Clock
	log   *logging.Logger

	// Write buffer to reduce SQLite IOPS
	buffer   map[churnKey]int64
	bufferMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	events <-chan Event
}

type churnKey struct {
	event  EventType
	family string
}

// AggregatorConfig configures the churn aggregator.
type AggregatorConfig struct {
	// FlushInterval is how often to flush buffered samples (default: 10s)
	FlushInterval time.Duration

	// JanitorInterval is how often to run rollups (default: 1h)
	JanitorInterval time.Duration

	// RawRetention is how long raw samples are kept before rollup (default: 2h)
	RawRetention time.Duration

	// HourlyRetention is how long hourly buckets are kept (default: 30d)
	HourlyRetention time.Duration
}

// DefaultAggregatorConfig returns sensible defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		FlushInterval:   10 * time.Second,
		JanitorInterval: time.Hour,
		RawRetention:    2 * time.Hour,
		HourlyRetention: 30 * 24 * time.Hour,
	}
}

// ChurnPoint is one aggregated sample.
type ChurnPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Event     EventType `json:"event"`
	Family    string    `json:"family"`
	Count     int64     `json:"count"`
}

// OpenDB opens the SQLite database at path. ":memory:" keeps history
// in-process; the pool is pinned to one connection so it stays one database.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewAggregator creates a churn aggregator and initializes its schema.
func NewAggregator(db *sql.DB, hub *Hub, clk clock.Clock) (*Aggregator, error) {
	if clk == nil {
		clk = clock.Real
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &Aggregator{
		db:     db,
		hub:    hub,
		clock:  clk,
		log:    logging.WithComponent("history"),
		buffer: make(map[churnKey]int64),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := a.initSchema(); err != nil {
		cancel()
		return nil, err
	}
	return a, nil
}

func (a *Aggregator) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS churn_raw (
		timestamp INTEGER NOT NULL,
		event TEXT NOT NULL,
		family TEXT NOT NULL,
		count INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_churn_raw_ts ON churn_raw(timestamp);

	CREATE TABLE IF NOT EXISTS churn_hourly (
		hour_bucket TEXT NOT NULL,
		event TEXT NOT NULL,
		family TEXT NOT NULL,
		count INTEGER DEFAULT 0,
		PRIMARY KEY (hour_bucket, event, family)
	);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to init history schema: %w", err)
	}
	return nil
}

// Start subscribes to the hub and begins background processing.
func (a *Aggregator) Start(cfg AggregatorConfig) {
	a.events = a.hub.Subscribe(1000, TableEvents...)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.ctx.Done():
				return
			case e := <-a.events:
				a.record(e)
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		flush := time.NewTicker(cfg.FlushInterval)
		defer flush.Stop()
		janitor := time.NewTicker(cfg.JanitorInterval)
		defer janitor.Stop()

		for {
			select {
			case <-a.ctx.Done():
				a.Flush()
				return
			case <-flush.C:
				a.Flush()
			case <-janitor.C:
				a.RunJanitor(cfg)
			}
		}
	}()
}

// PingContext checks that the history database still answers.
func (a *Aggregator) PingContext(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Stop flushes pending samples and shuts down the aggregator.
func (a *Aggregator) Stop() {
	a.cancel()
	a.wg.Wait()
	if a.events != nil {
		a.hub.Unsubscribe(a.events)
	}
}

func (a *Aggregator) record(e Event) {
	data, ok := e.Data.(TableChangeData)
	if !ok {
		return
	}
	a.bufferMu.Lock()
	a.buffer[churnKey{event: e.Type, family: data.Family}]++
	a.bufferMu.Unlock()
}

// Flush writes buffered samples to SQLite.
func (a *Aggregator) Flush() {
	a.bufferMu.Lock()
	if len(a.buffer) == 0 {
		a.bufferMu.Unlock()
		return
	}
	toFlush := a.buffer
	a.buffer = make(map[churnKey]int64)
	a.bufferMu.Unlock()

	tx, err := a.db.Begin()
	if err != nil {
		a.log.Warn("failed to begin transaction", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO churn_raw (timestamp, event, family, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		a.log.Warn("failed to prepare statement", "error", err)
		return
	}
	defer stmt.Close()

	now := a.clock.Now().Unix()
	for k, n := range toFlush {
		if _, err := stmt.Exec(now, string(k.event), k.family, n); err != nil {
			a.log.Warn("failed to insert churn sample", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		a.log.Warn("failed to commit churn samples", "error", err)
	}
}

// RunJanitor rolls raw samples older than RawRetention into hourly buckets
// and drops hourly buckets older than HourlyRetention.
func (a *Aggregator) RunJanitor(cfg AggregatorConfig) {
	now := a.clock.Now()
	rawCutoff := now.Add(-cfg.RawRetention).Unix()

	tx, err := a.db.Begin()
	if err != nil {
		a.log.Warn("janitor: failed to begin transaction", "error", err)
		return
	}
	_, err = tx.Exec(`
		INSERT INTO churn_hourly (hour_bucket, event, family, count)
		SELECT strftime('%Y-%m-%d %H:00', timestamp, 'unixepoch'), event, family, sum(count)
		FROM churn_raw
		WHERE timestamp < ?
		GROUP BY 1, 2, 3
		ON CONFLICT (hour_bucket, event, family) DO UPDATE SET count = count + excluded.count
	`, rawCutoff)
	if err == nil {
		_, err = tx.Exec(`DELETE FROM churn_raw WHERE timestamp < ?`, rawCutoff)
	}
	if err != nil {
		tx.Rollback()
		a.log.Warn("janitor: rollup raw to hourly failed", "error", err)
		return
	}
	if err := tx.Commit(); err != nil {
		a.log.Warn("janitor: commit failed", "error", err)
		return
	}

	hourlyCutoff := now.Add(-cfg.HourlyRetention).UTC().Format("2006-01-02 15:00")
	if _, err := a.db.Exec(`DELETE FROM churn_hourly WHERE hour_bucket < ?`, hourlyCutoff); err != nil {
		a.log.Warn("janitor: cleanup hourly failed", "error", err)
	}
	a.log.Debug("janitor complete")
}

// RecentChurn returns raw samples newer than now-d, oldest first.
func (a *Aggregator) RecentChurn(d time.Duration) ([]ChurnPoint, error) {
	cutoff := a.clock.Now().Add(-d).Unix()

	rows, err := a.db.Query(`
		SELECT timestamp, event, family, count
		FROM churn_raw
		WHERE timestamp >= ?
		ORDER BY timestamp, event, family
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []ChurnPoint
	for rows.Next() {
		var p ChurnPoint
		var ts int64
		var event string
		if err := rows.Scan(&ts, &event, &p.Family, &p.Count); err != nil {
			return nil, err
		}
		p.Timestamp = time.Unix(ts, 0)
		p.Event = EventType(event)
		points = append(points, p)
	}
	return points, rows.Err()
}

// HourlyChurn returns hourly buckets from the last days days, oldest first.
func (a *Aggregator) HourlyChurn(days int) ([]ChurnPoint, error) {
	cutoff := a.clock.Now().AddDate(0, 0, -days).UTC().Format("2006-01-02 15:00")

	rows, err := a.db.Query(`
		SELECT hour_bucket, event, family, count
		FROM churn_hourly
		WHERE hour_bucket >= ?
		ORDER BY hour_bucket, event, family
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []ChurnPoint
	for rows.Next() {
		var p ChurnPoint
		var bucket, event string
		if err := rows.Scan(&bucket, &event, &p.Family, &p.Count); err != nil {
			return nil, err
		}
		p.Timestamp, _ = time.Parse("2006-01-02 15:04", bucket)
		p.Event = EventType(event)
		points = append(points, p)
	}
	return points, rows.Err()
}
