package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/pulse/internal/database"
	testingutil "github.com/aristath/pulse/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte), deleteErr: make(map[string]error)}
}

func (m *memoryStore) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(ctx context.Context, prefix string) ([]StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StoredObject
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, StoredObject{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[key]; err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = content
	}
	return files
}

func TestBackupService_CreateAndUpload(t *testing.T) {
	portfolioDB := testingutil.NewTestDB(t, database.NamePortfolio)
	notificationsDB := testingutil.NewTestDB(t, database.NameNotifications)
	_, err := portfolioDB.Conn().Exec(`INSERT INTO portfolios (user_id, name, cash, total_value, active, updated_at) VALUES ('u1', 'main', 10, 10, 1, 0)`)
	require.NoError(t, err)

	store := newMemoryStore()
	svc := NewBackupService(store, []*database.DB{portfolioDB, notificationsDB}, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC) }

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pulse-backup-2026-04-10-030000.tar.gz", key)

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, "portfolio.db")
	require.Contains(t, files, "notifications.db")
	require.Contains(t, files, metadataFile)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &meta))
	assert.NotEmpty(t, meta.ID)
	require.Len(t, meta.Databases, 2)
	assert.Equal(t, portfolioDB.Path(), meta.Databases[0].SourcePath)
	assert.Equal(t, notificationsDB.Path(), meta.Databases[1].SourcePath)
	for _, db := range meta.Databases {
		assert.NotEmpty(t, db.SourcePath)
		content := files[db.Filename]
		assert.Equal(t, int64(len(content)), db.SizeBytes)
		assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(content)), db.Checksum)
	}
}

func TestBackupService_UploadFailure(t *testing.T) {
	store := newMemoryStore()
	store.uploadErr = errors.New("403 forbidden")
	svc := NewBackupService(store, []*database.DB{testingutil.NewTestDB(t, database.NamePortfolio)}, t.TempDir(), zerolog.Nop())

	_, err := svc.CreateAndUpload(context.Background())
	assert.ErrorIs(t, err, store.uploadErr)
}

func seedBackups(store *memoryStore, n int) {
	base := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		key := backupPrefix + base.AddDate(0, 0, i).Format(backupTimeLayout) + backupSuffix
		store.objects[key] = []byte("x")
	}
	store.objects["pulse-backup-garbage.tar.gz"] = []byte("x")
}

func TestBackupService_ListNewestFirst(t *testing.T) {
	store := newMemoryStore()
	seedBackups(store, 3)
	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, time.Date(2026, 4, 3, 3, 0, 0, 0, time.UTC), backups[0].Timestamp)
	assert.Equal(t, time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC), backups[2].Timestamp)
}

func TestBackupService_Rotate(t *testing.T) {
	store := newMemoryStore()
	seedBackups(store, 6)
	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	deleted, err := svc.Rotate(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.NotContains(t, store.keys(), "pulse-backup-2026-04-01-030000.tar.gz")
	assert.NotContains(t, store.keys(), "pulse-backup-2026-04-02-030000.tar.gz")
	assert.Contains(t, store.keys(), "pulse-backup-2026-04-03-030000.tar.gz")
	assert.Contains(t, store.keys(), "pulse-backup-garbage.tar.gz", "unrecognized objects are left alone")
}

func TestBackupService_RotateKeepsMinimum(t *testing.T) {
	store := newMemoryStore()
	seedBackups(store, 5)
	store.deleteErr["pulse-backup-2026-04-01-030000.tar.gz"] = errors.New("timeout")
	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	deleted, err := svc.Rotate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "one of the two deletions failed")
	assert.Len(t, store.keys(), 5)
}

func TestDailyMaintenanceJob(t *testing.T) {
	db := testingutil.NewTestDB(t, database.NamePortfolio)

	job := NewDailyMaintenanceJob([]*database.DB{db}, t.TempDir(), zerolog.Nop())
	job.diskFree = func(ctx context.Context, path string) (uint64, error) { return 10 << 30, nil }
	assert.NoError(t, job.Run())

	job.diskFree = func(ctx context.Context, path string) (uint64, error) { return 100 << 20, nil }
	assert.Error(t, job.Run())

	job.diskFree = func(ctx context.Context, path string) (uint64, error) { return 0, errors.New("unsupported") }
	assert.NoError(t, job.Run())
}

func TestBackupJob(t *testing.T) {
	store := newMemoryStore()
	seedBackups(store, 4)
	svc := NewBackupService(store, []*database.DB{testingutil.NewTestDB(t, database.NamePortfolio)}, t.TempDir(), zerolog.Nop())

	job := NewBackupJob(svc, 3, zerolog.Nop())
	require.NoError(t, job.Run())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backups, 3)
	assert.Equal(t, "backup", job.Name())
}
