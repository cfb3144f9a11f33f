package exchange_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/infrastructure/persistence"
	"github.com/shop/backend/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv is a migrated in-memory database with its repositories.
type testEnv struct {
	db       *gorm.DB
	scope    *persistence.GormTransactionScope
	sessions *persistence.GormImportSessionRepository
	storage  *memStorage
	root     string
	seq      *testutil.Sequence
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, persistence.AutoMigrate(db))
	return &testEnv{
		db:       db,
		scope:    persistence.NewGormTransactionScope(db),
		sessions: persistence.NewGormImportSessionRepository(db),
		storage:  newMemStorage(),
		root:     t.TempDir(),
		seq:      testutil.NewSequence("t"),
	}
}

// inTx runs fn in one transaction and fails the test on error.
func (e *testEnv) inTx(t *testing.T, fn func(repos appexchange.TransactionalRepositories) error) {
	t.Helper()
	require.NoError(t, e.scope.Execute(context.Background(), fn))
}

// writeFeed places a document below the exchange root.
func (e *testEnv) writeFeed(t *testing.T, rel, content string) {
	t.Helper()
	writeFile(t, filepath.Join(e.root, filepath.FromSlash(rel)), []byte(content))
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func (e *testEnv) processor(cfg appexchange.ProcessorConfig, opts ...appexchange.ProcessorOption) *appexchange.Processor {
	if cfg.RootDir == "" {
		cfg.RootDir = e.root
	}
	if cfg.MaxErrors == 0 {
		cfg.MaxErrors = 100
	}
	return appexchange.NewProcessor(e.scope, e.sessions, e.storage, cfg, nil, opts...)
}

// memStorage is an in-memory ObjectStorage.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	uploads int
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStorage) Upload(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	s.uploads++
	return nil
}

func (s *memStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *memStorage) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
