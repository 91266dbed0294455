package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/einsatzpix/gallery-api/internal/models"
)

// PhotoStore owns the persisted photo index: a single pretty-printed JSON
// array rewritten in full on every append. All mutation goes through an
// exclusive advisory file lock; unsynchronized reads are allowed for the
// quota pre-check and for listing, never for the commit path.
type PhotoStore struct {
	path   string
	lock   *flock.Flock
	logger *zap.Logger
}

// NewPhotoStore constructs a store for the given index path. The lock lives
// in a sidecar file so the index itself can be replaced atomically.
func NewPhotoStore(path string, logger *zap.Logger) *PhotoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotoStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// ReadAll loads the full index. It never fails outward: a missing, empty or
// unparseable document degrades to no records.
func (s *PhotoStore) ReadAll() []models.Photo {
	return s.readIndex()
}

// AppendIfUnderQuota re-checks the client's daily count under the exclusive
// lock and appends the record only if still under the limit. The index is
// re-read fresh inside the critical section; a cached snapshot from the
// caller's pre-check is never trusted. Returns false when the quota is
// already consumed, error only on lock or persistence failure.
func (s *PhotoStore) AppendIfUnderQuota(photo models.Photo, clientIP string, dailyLimit int) (bool, error) {
	if err := s.lock.Lock(); err != nil {
		return false, fmt.Errorf("acquire photo index lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	photos := s.readIndex()
	if CountOnDay(photos, clientIP, DayKey(time.Now())) >= dailyLimit {
		return false, nil
	}

	photos = append(photos, photo)
	if err := s.writeIndex(photos); err != nil {
		return false, err
	}
	return true, nil
}

// CountOnDay counts records from clientIP whose uploaded_at timestamp starts
// with the given day key. Plain string-prefix matching against the local
// wall-clock day, same as the quota window the index has always used.
func CountOnDay(photos []models.Photo, clientIP, dayKey string) int {
	count := 0
	for _, p := range photos {
		if p.ClientIP == clientIP && strings.HasPrefix(p.UploadedAt, dayKey) {
			count++
		}
	}
	return count
}

// DayKey formats the quota day key (YYYY-MM-DD) for the given time.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func (s *PhotoStore) readIndex() []models.Photo {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("photo index unreadable, treating as empty", zap.Error(err))
		}
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var photos []models.Photo
	if err := json.Unmarshal(raw, &photos); err != nil {
		s.logger.Warn("photo index corrupt, treating as empty", zap.Error(err))
		return nil
	}
	return photos
}

// writeIndex replaces the document durably: encode, write to a temp file in
// the same directory, fsync, then rename over the index. A failed write
// never leaves a partially-written document behind.
func (s *PhotoStore) writeIndex(photos []models.Photo) error {
	data, err := json.MarshalIndent(photos, "", "  ")
	if err != nil {
		return fmt.Errorf("encode photo index: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".photos-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()          //nolint:errcheck
		os.Remove(tmpName)   //nolint:errcheck
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()          //nolint:errcheck
		os.Remove(tmpName)   //nolint:errcheck
		return fmt.Errorf("sync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("replace photo index: %w", err)
	}
	return nil
}
