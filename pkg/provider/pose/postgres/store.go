package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxsign/voxsign/internal/gloss"
	"github.com/voxsign/voxsign/pkg/provider/pose"
)

// Compile-time interface check.
var _ pose.Renderer = (*Store)(nil)

// DB is the query surface the dictionary needs. Both [*pgxpool.Pool] and
// [*pgx.Conn] satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a PostgreSQL-backed pose dictionary. It queries through a [DB]
// plus an in-memory copy of the vocabulary (the set of gloss keys),
// refreshed on construction and via [Store.Refresh]. The vocabulary cache
// feeds the phonetic matcher so near-miss tokens can be corrected without a
// table scan per lookup.
//
// All operations are safe for concurrent use.
type Store struct {
	db      DB
	pool    *pgxpool.Pool // nil when built over a bare DB
	matcher *gloss.Matcher

	mu         sync.RWMutex
	vocabulary []string
}

// Option is a functional option for [NewStore].
type Option func(*Store)

// WithMatcher overrides the phonetic matcher used for unknown-token
// correction. Pass nil to disable fuzzy matching entirely.
func WithMatcher(m *gloss.Matcher) Option {
	return func(s *Store) { s.matcher = m }
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, runs [Migrate] to ensure the dictionary table
// exists, and loads the vocabulary cache.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pose store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pose store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pose store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pose store: migrate: %w", err)
	}

	s := NewStoreWithDB(pool, opts...)
	s.pool = pool

	if err := s.Refresh(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB builds a Store over an existing connection or pool. The
// caller owns the connection's lifecycle and schema; [Store.Refresh] must be
// called before phonetic correction can see the vocabulary.
func NewStoreWithDB(db DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		matcher: gloss.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Render implements [pose.Renderer]. Tokens resolve in order: exact
// dictionary hit, then phonetic correction against the vocabulary, then skip.
// Fingerspelled tokens (FS-<word>) resolve letter by letter without phonetic
// correction.
func (s *Store) Render(ctx context.Context, glossText string) ([]pose.Frame, error) {
	var out []pose.Frame
	for _, token := range pose.Tokens(glossText) {
		frames, err := s.resolveToken(ctx, token)
		if err != nil {
			return nil, err
		}
		out = append(out, frames...)
	}
	return out, nil
}

// resolveToken returns the frames for a single gloss token, or nil when the
// token cannot be resolved. Database errors other than a missing row are
// returned.
func (s *Store) resolveToken(ctx context.Context, token string) ([]pose.Frame, error) {
	if word, ok := strings.CutPrefix(token, pose.FingerspellPrefix); ok {
		return s.fingerspell(ctx, word)
	}

	frames, err := s.lookup(ctx, token)
	if err == nil {
		return frames, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if s.matcher != nil {
		if corrected, confidence, matched := s.matcher.Match(token, s.KnownGlosses()); matched {
			slog.Debug("pose store: corrected unknown gloss",
				"token", token, "corrected", corrected, "confidence", confidence)
			frames, err := s.lookup(ctx, corrected)
			if err == nil {
				return frames, nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, err
			}
		}
	}

	slog.Warn("pose store: unknown gloss token skipped", "token", token)
	return nil, nil
}

// fingerspell resolves each letter of word to its alphabet entry. Letters
// without an entry are skipped.
func (s *Store) fingerspell(ctx context.Context, word string) ([]pose.Frame, error) {
	var out []pose.Frame
	for _, r := range word {
		frames, err := s.lookup(ctx, string(r))
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("pose store: no fingerspelling entry", "letter", string(r))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, frames...)
	}
	return out, nil
}

// lookup fetches the frame sequence for one exact gloss key. Returns
// pgx.ErrNoRows (wrapped) when the key is absent.
func (s *Store) lookup(ctx context.Context, glossKey string) ([]pose.Frame, error) {
	const q = `SELECT frames FROM poses WHERE gloss = $1`

	var raw []byte
	if err := s.db.QueryRow(ctx, q, glossKey).Scan(&raw); err != nil {
		return nil, fmt.Errorf("pose store: lookup %q: %w", glossKey, err)
	}

	var frames []pose.Frame
	if err := json.Unmarshal(raw, &frames); err != nil {
		return nil, fmt.Errorf("pose store: decode frames for %q: %w", glossKey, err)
	}
	return frames, nil
}

// Put inserts or replaces the frame sequence for glossKey. The key is
// canonicalised to upper case. Used by dictionary ingestion tooling.
func (s *Store) Put(ctx context.Context, glossKey string, frames []pose.Frame) error {
	glossKey = strings.ToUpper(strings.TrimSpace(glossKey))
	if glossKey == "" {
		return fmt.Errorf("pose store: put: gloss must not be empty")
	}

	raw, err := json.Marshal(frames)
	if err != nil {
		return fmt.Errorf("pose store: encode frames for %q: %w", glossKey, err)
	}

	const q = `
		INSERT INTO poses (gloss, frames, frame_count, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (gloss) DO UPDATE
		SET frames = EXCLUDED.frames,
		    frame_count = EXCLUDED.frame_count,
		    updated_at = now()`

	if _, err := s.db.Exec(ctx, q, glossKey, raw, len(frames)); err != nil {
		return fmt.Errorf("pose store: put %q: %w", glossKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vocabulary {
		if v == glossKey {
			return nil
		}
	}
	s.vocabulary = append(s.vocabulary, glossKey)
	return nil
}

// KnownGlosses returns a snapshot of the cached vocabulary.
func (s *Store) KnownGlosses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.vocabulary))
	copy(out, s.vocabulary)
	return out
}

// Refresh reloads the vocabulary cache from the database.
func (s *Store) Refresh(ctx context.Context) error {
	const q = `SELECT gloss FROM poses ORDER BY gloss`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("pose store: refresh vocabulary: %w", err)
	}

	vocabulary, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("pose store: refresh vocabulary: %w", err)
	}

	s.mu.Lock()
	s.vocabulary = vocabulary
	s.mu.Unlock()
	return nil
}

// Ready reports whether the database is reachable. A store built over a
// bare [DB] has no pool to ping and is always considered ready.
func (s *Store) Ready(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pose store: ping: %w", err)
	}
	return nil
}

// Close releases the underlying pool, if the store owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
