// Package cache implements the two-tier Cache Fabric: a bounded in-process
// L1 with short TTL backed by a persistent on-disk L2 with longer TTL.
// Absence and "looked up, confirmed absent" (sentinel) are both first-class,
// read-indistinguishable results — both mean "do not recompute inside TTL".
package cache

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/marketcore/internal/clock"
)

// State classifies a Get result.
type State int

const (
	// Absent means the key has never been looked up (or was invalidated):
	// callers must fetch from upstream.
	Absent State = iota
	// Present means a real value is cached.
	Present
	// Sentinel means the key was looked up and confirmed to have no data;
	// the SentinelTag names which "not found" flavor was recorded.
	Sentinel
)

// Result is the outcome of a Cache Fabric lookup.
type Result struct {
	State       State
	Value       []byte
	SentinelTag string
}

// Fabric is the two-tier cache. The zero value is not usable; use NewFabric.
type Fabric struct {
	mu        sync.RWMutex
	l1        map[string]l1Entry
	db        *sql.DB // may be nil: L2 disabled, fabric degrades to L1-only
	ttlPolicy map[string]TTLPair
	clk       clock.Clock
	log       zerolog.Logger
}

type l1Entry struct {
	value       []byte
	sentinel    bool
	sentinelTag string
	expiresAt   time.Time
}

// NewFabric creates a Cache Fabric. db may be nil to run L1-only (tests, or
// environments where the disk cache is unavailable); a non-nil db has the
// backing table created if missing.
func NewFabric(db *sql.DB, ttlPolicy map[string]TTLPair, clk clock.Clock, log zerolog.Logger) (*Fabric, error) {
	f := &Fabric{
		l1:        make(map[string]l1Entry),
		db:        db,
		ttlPolicy: ttlPolicy,
		clk:       clk,
		log:       log.With().Str("component", "cache_fabric").Logger(),
	}
	if db != nil {
		if _, err := db.Exec(schemaSQL); err != nil {
			return nil, err
		}
	}
	return f, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace    TEXT NOT NULL,
	key          TEXT NOT NULL,
	value        BLOB,
	sentinel_tag TEXT,
	expires_at   INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Get consults L1 first, then L2. An L2 hit is promoted into L1.
func (f *Fabric) Get(key string) Result {
	if r, ok := f.getL1(key); ok {
		return r
	}

	if f.db == nil {
		return Result{State: Absent}
	}

	r, ok, err := f.getL2(key)
	if err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("L2 read failed, degrading to L1-only for this lookup")
		return Result{State: Absent}
	}
	if !ok {
		return Result{State: Absent}
	}

	ttl := f.ttlFor(namespaceOf(key))
	f.setL1(key, r, ttl.L1)
	return r
}

func (f *Fabric) getL1(key string) (Result, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, ok := f.l1[key]
	if !ok {
		return Result{}, false
	}
	if f.clk.Now().After(e.expiresAt) {
		return Result{}, false
	}
	if e.sentinel {
		return Result{State: Sentinel, SentinelTag: e.sentinelTag}, true
	}
	return Result{State: Present, Value: e.value}, true
}

func (f *Fabric) setL1(key string, r Result, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.l1[key] = l1Entry{
		value:       r.Value,
		sentinel:    r.State == Sentinel,
		sentinelTag: r.SentinelTag,
		expiresAt:   f.clk.Now().Add(ttl),
	}
}

func (f *Fabric) getL2(key string) (Result, bool, error) {
	ns := namespaceOf(key)
	var value []byte
	var sentinelTag sql.NullString
	var expiresAt int64

	row := f.db.QueryRow(
		`SELECT value, sentinel_tag, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		ns, key,
	)
	if err := row.Scan(&value, &sentinelTag, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return Result{}, false, nil
		}
		return Result{}, false, err
	}

	if f.clk.Now().Unix() >= expiresAt {
		return Result{}, false, nil
	}

	if sentinelTag.Valid {
		return Result{State: Sentinel, SentinelTag: sentinelTag.String}, true, nil
	}
	return Result{State: Present, Value: value}, true, nil
}

// Put writes a present value to both tiers using the namespace's configured
// TTL. A nil/empty value for an absence-style lookup must be written via
// PutSentinel, never through Put with an empty payload.
func (f *Fabric) Put(key string, value []byte) {
	ttl := f.ttlFor(namespaceOf(key))
	r := Result{State: Present, Value: value}
	f.setL1(key, r, ttl.L1)
	f.writeL2(key, r, ttl.L2)
}

// PutSentinel records a "looked up, confirmed absent" marker for key.
func (f *Fabric) PutSentinel(key string, tag string) {
	ttl := f.ttlFor(namespaceOf(key))
	r := Result{State: Sentinel, SentinelTag: tag}
	f.setL1(key, r, ttl.L1)
	f.writeL2(key, r, ttl.L2)
}

func (f *Fabric) writeL2(key string, r Result, ttl time.Duration) {
	if f.db == nil {
		return
	}
	ns := namespaceOf(key)
	expiresAt := f.clk.Now().Add(ttl).Unix()

	var sentinelTag sql.NullString
	var value []byte
	if r.State == Sentinel {
		sentinelTag = sql.NullString{String: r.SentinelTag, Valid: true}
	} else {
		value = r.Value
	}

	_, err := f.db.Exec(`
		INSERT INTO cache_entries (namespace, key, value, sentinel_tag, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			sentinel_tag = excluded.sentinel_tag,
			expires_at = excluded.expires_at
	`, ns, key, value, sentinelTag, expiresAt)
	if err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("L2 write failed, value remains cached in L1 only")
	}
}

// BulkGet minimizes per-key overhead versus calling Get in a loop: it
// batches the L2 fallback into a single query for all L1 misses.
func (f *Fabric) BulkGet(keys []string) map[string]Result {
	out := make(map[string]Result, len(keys))
	var misses []string

	for _, k := range keys {
		if r, ok := f.getL1(k); ok {
			out[k] = r
		} else {
			misses = append(misses, k)
		}
	}

	if len(misses) == 0 || f.db == nil {
		return out
	}

	placeholders := make([]string, len(misses))
	args := make([]interface{}, len(misses))
	for i, k := range misses {
		placeholders[i] = "?"
		args[i] = k
	}

	query := `SELECT namespace, key, value, sentinel_tag, expires_at FROM cache_entries WHERE key IN (` +
		strings.Join(placeholders, ",") + `)`

	rows, err := f.db.Query(query, args...)
	if err != nil {
		f.log.Warn().Err(err).Msg("L2 bulk read failed, degrading to per-key absent for misses")
		return out
	}
	defer rows.Close()

	now := f.clk.Now()
	for rows.Next() {
		var ns, key string
		var value []byte
		var sentinelTag sql.NullString
		var expiresAt int64
		if err := rows.Scan(&ns, &key, &value, &sentinelTag, &expiresAt); err != nil {
			continue
		}
		if now.Unix() >= expiresAt {
			continue
		}
		var r Result
		if sentinelTag.Valid {
			r = Result{State: Sentinel, SentinelTag: sentinelTag.String}
		} else {
			r = Result{State: Present, Value: value}
		}
		out[key] = r
		f.setL1(key, r, f.ttlFor(ns).L1)
	}
	return out
}

// Invalidate removes key from both tiers. The next Get triggers exactly one
// upstream call via the router's dedup+fetch path.
func (f *Fabric) Invalidate(key string) {
	f.mu.Lock()
	delete(f.l1, key)
	f.mu.Unlock()

	if f.db == nil {
		return
	}
	ns := namespaceOf(key)
	if _, err := f.db.Exec(`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, ns, key); err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("L2 invalidate failed")
	}
}

// InvalidateNamespace removes every key beginning with prefix from both tiers.
func (f *Fabric) InvalidateNamespace(prefix string) {
	f.mu.Lock()
	for k := range f.l1 {
		if strings.HasPrefix(k, prefix) {
			delete(f.l1, k)
		}
	}
	f.mu.Unlock()

	if f.db == nil {
		return
	}
	if _, err := f.db.Exec(`DELETE FROM cache_entries WHERE key LIKE ?`, prefix+"%"); err != nil {
		f.log.Warn().Err(err).Str("prefix", prefix).Msg("L2 invalidate_namespace failed")
	}
}

// Clear empties both tiers entirely.
func (f *Fabric) Clear() {
	f.mu.Lock()
	f.l1 = make(map[string]l1Entry)
	f.mu.Unlock()

	if f.db == nil {
		return
	}
	if _, err := f.db.Exec(`DELETE FROM cache_entries`); err != nil {
		f.log.Warn().Err(err).Msg("L2 clear failed")
	}
}

// DeleteExpired purges rows past their expiry from L2; it is run by the
// periodic cleanup job, not by request-path code.
func (f *Fabric) DeleteExpired() (int64, error) {
	if f.db == nil {
		return 0, nil
	}
	res, err := f.db.Exec(`DELETE FROM cache_entries WHERE expires_at < ?`, f.clk.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats summarizes the fabric's current occupancy for the admin
// cache-inspection endpoint: L1 entry count and L2 row count per namespace.
type Stats struct {
	L1Count      int
	L2ByNamespace map[string]int
}

// Stats reports current L1/L2 occupancy. L2ByNamespace is empty when the
// fabric is running L1-only (db == nil).
func (f *Fabric) Stats() (Stats, error) {
	f.mu.RLock()
	l1Count := len(f.l1)
	f.mu.RUnlock()

	stats := Stats{L1Count: l1Count, L2ByNamespace: map[string]int{}}
	if f.db == nil {
		return stats, nil
	}

	rows, err := f.db.Query(`SELECT namespace, COUNT(*) FROM cache_entries GROUP BY namespace`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var ns string
		var count int
		if err := rows.Scan(&ns, &count); err != nil {
			return stats, err
		}
		stats.L2ByNamespace[ns] = count
	}
	return stats, rows.Err()
}

// marshalValue and unmarshalValue are the msgpack codec shared by every
// caller that stores structured domain payloads in the fabric.
func marshalValue(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func unmarshalValue(data []byte, out interface{}) error {
	return msgpack.Unmarshal(data, out)
}

// Encode is the exported msgpack codec callers use to turn a domain payload
// into the []byte Put expects.
func Encode(v interface{}) ([]byte, error) { return marshalValue(v) }

// Decode is the exported msgpack codec callers use to turn a Result.Value
// back into a domain payload.
func Decode(data []byte, out interface{}) error { return unmarshalValue(data, out) }
