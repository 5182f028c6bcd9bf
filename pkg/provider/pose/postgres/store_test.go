package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voxsign/voxsign/pkg/provider/pose"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers — mock DB types
// ─────────────────────────────────────────────────────────────────────────────

// mockRow implements pgx.Row.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows over a fixed data set.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d columns, %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

// mockDB is an in-memory pose dictionary behind the [DB] seam. It records
// every looked-up gloss key so tests can assert the resolution order.
type mockDB struct {
	mu      sync.Mutex
	entries map[string][]byte // gloss → frames JSONB
	errs    map[string]error  // gloss → forced lookup error
	queried []string
	execs   []string // first arg of each Exec call
	vocab   [][]any  // rows served to Refresh
}

func (m *mockDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	key := args[0].(string)
	m.mu.Lock()
	m.queried = append(m.queried, key)
	raw, ok := m.entries[key]
	err := m.errs[key]
	m.mu.Unlock()

	return &mockRow{scanFunc: func(dest ...any) error {
		if err != nil {
			return err
		}
		if !ok {
			return pgx.ErrNoRows
		}
		*(dest[0].(*[]byte)) = raw
		return nil
	}}
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return &mockRows{data: m.vocab}, nil
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(args) > 0 {
		m.execs = append(m.execs, args[0].(string))
	} else {
		m.execs = append(m.execs, sql)
	}
	return pgconn.CommandTag{}, nil
}

// frame builds one recognisable pose frame; x identifies the dictionary
// entry it came from.
func frame(x float64) pose.Frame {
	return pose.Frame{Landmarks: []pose.Landmark{{X: x, Y: 0.5, Z: 0}}}
}

func framesJSON(t *testing.T, frames ...pose.Frame) []byte {
	t.Helper()
	raw, err := json.Marshal(frames)
	if err != nil {
		t.Fatalf("marshal frames: %v", err)
	}
	return raw
}

// newTestStore builds a Store over db with the given vocabulary cache
// pre-loaded, as Refresh would after startup.
func newTestStore(db *mockDB, vocabulary []string, opts ...Option) *Store {
	s := NewStoreWithDB(db, opts...)
	s.vocabulary = vocabulary
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Render
// ─────────────────────────────────────────────────────────────────────────────

func TestRenderExactHit(t *testing.T) {
	t.Parallel()

	db := &mockDB{entries: map[string][]byte{
		"HELLO": framesJSON(t, frame(1), frame(2)),
	}}
	s := newTestStore(db, []string{"HELLO"})

	frames, err := s.Render(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(frames) != 2 || frames[0].Landmarks[0].X != 1 || frames[1].Landmarks[0].X != 2 {
		t.Errorf("frames = %+v, want the HELLO sequence", frames)
	}
	if !slices.Equal(db.queried, []string{"HELLO"}) {
		t.Errorf("queried = %v, want one exact lookup", db.queried)
	}
}

func TestRenderFingerspellExpandsPerLetter(t *testing.T) {
	t.Parallel()

	db := &mockDB{entries: map[string][]byte{
		"S": framesJSON(t, frame(1)),
		"A": framesJSON(t, frame(2)),
		"M": framesJSON(t, frame(3)),
	}}
	s := newTestStore(db, []string{"S", "A", "M"})

	frames, err := s.Render(context.Background(), "FS-SAM")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	got := make([]float64, len(frames))
	for i, f := range frames {
		got[i] = f.Landmarks[0].X
	}
	if !slices.Equal(got, []float64{1, 2, 3}) {
		t.Errorf("frame order = %v, want letter order [1 2 3]", got)
	}
	// The letters are looked up individually; the composite token never is.
	if !slices.Equal(db.queried, []string{"S", "A", "M"}) {
		t.Errorf("queried = %v, want per-letter lookups", db.queried)
	}
}

func TestRenderFingerspellSkipsMissingLetter(t *testing.T) {
	t.Parallel()

	// No "A" entry: the letter is skipped without phonetic correction, so
	// exactly one lookup per letter happens regardless.
	db := &mockDB{entries: map[string][]byte{
		"S": framesJSON(t, frame(1)),
		"M": framesJSON(t, frame(3)),
	}}
	s := newTestStore(db, []string{"S", "M", "HELLO"})

	frames, err := s.Render(context.Background(), "FS-SAM")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2 (missing letter skipped)", len(frames))
	}
	if !slices.Equal(db.queried, []string{"S", "A", "M"}) {
		t.Errorf("queried = %v, want [S A M] with no correction retry", db.queried)
	}
}

func TestRenderCorrectsNearMissToken(t *testing.T) {
	t.Parallel()

	db := &mockDB{entries: map[string][]byte{
		"HELLO": framesJSON(t, frame(1)),
	}}
	s := newTestStore(db, []string{"HELLO", "WORLD"})

	// "HELO" has no row; the phonetic matcher maps it onto the cached
	// vocabulary and the corrected key is retried.
	frames, err := s.Render(context.Background(), "HELO")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(frames) != 1 || frames[0].Landmarks[0].X != 1 {
		t.Errorf("frames = %+v, want the HELLO sequence via correction", frames)
	}
	if !slices.Equal(db.queried, []string{"HELO", "HELLO"}) {
		t.Errorf("queried = %v, want miss then corrected retry", db.queried)
	}
}

func TestRenderSkipsUnknownToken(t *testing.T) {
	t.Parallel()

	db := &mockDB{entries: map[string][]byte{
		"HELLO": framesJSON(t, frame(1)),
	}}
	s := newTestStore(db, []string{"HELLO"})

	// "XKCD" resolves nowhere: no row, no phonetic candidate. The animation
	// degrades to the tokens that did resolve; the session never errors.
	frames, err := s.Render(context.Background(), "HELLO XKCD")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(frames) != 1 || frames[0].Landmarks[0].X != 1 {
		t.Errorf("frames = %+v, want only the HELLO sequence", frames)
	}
}

func TestRenderWithoutMatcherSkipsNearMiss(t *testing.T) {
	t.Parallel()

	db := &mockDB{entries: map[string][]byte{
		"HELLO": framesJSON(t, frame(1)),
	}}
	s := newTestStore(db, []string{"HELLO"}, WithMatcher(nil))

	frames, err := s.Render(context.Background(), "HELO")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("frames = %+v, want none with correction disabled", frames)
	}
	if !slices.Equal(db.queried, []string{"HELO"}) {
		t.Errorf("queried = %v, want a single miss and no retry", db.queried)
	}
}

func TestRenderPropagatesDatabaseError(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("connection reset")
	db := &mockDB{errs: map[string]error{"HELLO": dbErr}}
	s := newTestStore(db, []string{"HELLO"})

	_, err := s.Render(context.Background(), "HELLO")
	if !errors.Is(err, dbErr) {
		t.Fatalf("Render error = %v, want wrapped %v", err, dbErr)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Put / Refresh
// ─────────────────────────────────────────────────────────────────────────────

func TestPutCanonicalisesAndExtendsVocabulary(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	s := newTestStore(db, nil)

	if err := s.Put(context.Background(), "  hello ", []pose.Frame{frame(1)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !slices.Equal(db.execs, []string{"HELLO"}) {
		t.Errorf("execs = %v, want one upsert of HELLO", db.execs)
	}
	if !slices.Contains(s.KnownGlosses(), "HELLO") {
		t.Errorf("KnownGlosses = %v, want HELLO cached", s.KnownGlosses())
	}

	// A second Put of the same key must not duplicate the cache entry.
	if err := s.Put(context.Background(), "HELLO", []pose.Frame{frame(2)}); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if got := s.KnownGlosses(); len(got) != 1 {
		t.Errorf("KnownGlosses after re-put = %v, want one entry", got)
	}
}

func TestPutRejectsEmptyGloss(t *testing.T) {
	t.Parallel()

	s := newTestStore(&mockDB{}, nil)
	if err := s.Put(context.Background(), "   ", nil); err == nil {
		t.Fatal("Put with blank gloss should fail")
	}
}

func TestRefreshReloadsVocabulary(t *testing.T) {
	t.Parallel()

	db := &mockDB{vocab: [][]any{{"A"}, {"HELLO"}, {"WORLD"}}}
	s := newTestStore(db, []string{"STALE"})

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !slices.Equal(s.KnownGlosses(), []string{"A", "HELLO", "WORLD"}) {
		t.Errorf("KnownGlosses = %v, want the reloaded set", s.KnownGlosses())
	}
}
