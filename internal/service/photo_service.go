package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/einsatzpix/gallery-api/internal/dto"
	"github.com/einsatzpix/gallery-api/internal/models"
	"github.com/einsatzpix/gallery-api/internal/repository"
	appErrors "github.com/einsatzpix/gallery-api/pkg/errors"
)

type photoStore interface {
	ReadAll() []models.Photo
	AppendIfUnderQuota(photo models.Photo, clientIP string, dailyLimit int) (bool, error)
}

type photoStorage interface {
	Save(filename string, data []byte) (string, error)
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	Path(filename string) string
}

type imageNormalizer interface {
	Probe(sourcePath string) (int, int, error)
	Normalize(sourcePath string) ([]byte, error)
}

// PhotoUpload carries the file part of an upload request.
type PhotoUpload struct {
	Filename      string
	Size          int64
	ContentLength int64
	Content       io.Reader
}

// PhotoDownload bundles an open original for attachment streaming.
type PhotoDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
}

// PhotoServiceConfig holds the upload validation parameters.
type PhotoServiceConfig struct {
	DailyLimit     int
	MaxUploadBytes int64
	MinDimension   int
}

// PhotoService orchestrates the upload pipeline and the retrieval paths.
type PhotoService struct {
	store      photoStore
	originals  photoStorage
	public     photoStorage
	normalizer imageNormalizer
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        PhotoServiceConfig
}

// NewPhotoService constructs the service with defaults.
func NewPhotoService(store photoStore, originals, public photoStorage, normalizer imageNormalizer, metrics *MetricsService, logger *zap.Logger, cfg PhotoServiceConfig) *PhotoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 * 1024 * 1024
	}
	if cfg.MinDimension <= 0 {
		cfg.MinDimension = 100
	}
	return &PhotoService{
		store:      store,
		originals:  originals,
		public:     public,
		normalizer: normalizer,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Upload runs the full pipeline: quota pre-check, validation, original
// persistence, normalization, and the locked quota-gated commit. Every file
// written before the commit is registered for rollback; the registrations
// are discarded only once the record is durably appended.
func (s *PhotoService) Upload(ctx context.Context, upload PhotoUpload, meta dto.UploadPhotoRequest, clientIP string) (*models.Photo, error) {
	dayKey := repository.DayKey(time.Now())

	// Cheap pre-check outside the lock so quota-exhausted clients never pay
	// for image decoding. The authoritative re-check happens at commit.
	if repository.CountOnDay(s.store.ReadAll(), clientIP, dayKey) >= s.cfg.DailyLimit {
		s.metrics.ObserveUpload(UploadOutcomeQuota)
		return nil, appErrors.ErrQuotaExceeded
	}

	if upload.ContentLength > s.cfg.MaxUploadBytes {
		s.metrics.ObserveUpload(UploadOutcomeInvalid)
		return nil, appErrors.ErrPayloadTooLarge
	}
	if upload.Content == nil || strings.TrimSpace(upload.Filename) == "" {
		s.metrics.ObserveUpload(UploadOutcomeInvalid)
		return nil, appErrors.ErrMissingFile
	}

	if _, ok := models.AllowedExtensions[strings.ToLower(filepath.Ext(upload.Filename))]; !ok {
		s.metrics.ObserveUpload(UploadOutcomeInvalid)
		return nil, appErrors.ErrUnsupportedType
	}

	displayName := sanitizeFilename(upload.Filename)
	// Sanitization can swallow the extension entirely (a basename with no
	// ASCII characters trims down to its bare suffix), so the stored
	// extension falls back rather than re-running the gate.
	ext := strings.ToLower(filepath.Ext(displayName))
	if ext == "" {
		ext = ".jpg"
	}

	id := newPhotoID()
	originalName := id + ext
	derivedName := id + ".webp"

	var cleanup []func()
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, remove := range cleanup {
			remove()
		}
	}()

	if _, err := s.originals.SaveStream(originalName, upload.Content); err != nil {
		s.metrics.ObserveUpload(UploadOutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store original")
	}
	cleanup = append(cleanup, func() { s.removeQuiet(s.originals, originalName) })

	width, height, err := s.normalizer.Probe(s.originals.Path(originalName))
	if err != nil {
		s.metrics.ObserveUpload(UploadOutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidImage.Code, appErrors.ErrInvalidImage.Status, appErrors.ErrInvalidImage.Message)
	}
	if width < s.cfg.MinDimension || height < s.cfg.MinDimension {
		s.metrics.ObserveUpload(UploadOutcomeInvalid)
		return nil, appErrors.ErrImageTooSmall
	}

	processingStart := time.Now()
	derived, err := s.normalizer.Normalize(s.originals.Path(originalName))
	if err != nil {
		s.metrics.ObserveUpload(UploadOutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrProcessingFailed.Code, appErrors.ErrProcessingFailed.Status, appErrors.ErrProcessingFailed.Message)
	}
	s.metrics.ObserveProcessing(time.Since(processingStart))

	if _, err := s.public.Save(derivedName, derived); err != nil {
		s.metrics.ObserveUpload(UploadOutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrProcessingFailed.Code, appErrors.ErrProcessingFailed.Status, appErrors.ErrProcessingFailed.Message)
	}
	cleanup = append(cleanup, func() { s.removeQuiet(s.public, derivedName) })

	missionDesc := strings.TrimSpace(meta.MissionDesc)
	photo := models.Photo{
		ID:            id,
		URL:           "/static/uploads/" + derivedName,
		DownloadURL:   "/download/" + id,
		Name:          displayName,
		OriginalExt:   ext,
		MissionNumber: strings.TrimSpace(meta.MissionNumber),
		MissionDesc:   missionDesc,
		HasMission:    missionDesc != "",
		UploadedAt:    time.Now().Format(models.UploadedAtLayout),
		ClientIP:      clientIP,
	}

	appendStart := time.Now()
	appended, err := s.store.AppendIfUnderQuota(photo, clientIP, s.cfg.DailyLimit)
	s.metrics.ObserveStoreAppend(time.Since(appendStart))
	if err != nil {
		s.metrics.ObserveUpload(UploadOutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upload")
	}
	if !appended {
		// Quota was consumed by a concurrent request between the pre-check
		// and the commit; the deferred rollback removes both files.
		s.metrics.ObserveUpload(UploadOutcomeQuota)
		return nil, appErrors.ErrQuotaExceeded
	}

	committed = true
	s.metrics.ObserveUpload(UploadOutcomeAccepted)
	return &photo, nil
}

// List returns all records, most recent first. Timestamps sort
// lexicographically in chronological order.
func (s *PhotoService) List() []models.Photo {
	photos := s.store.ReadAll()
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].UploadedAt > photos[j].UploadedAt
	})
	if photos == nil {
		photos = []models.Photo{}
	}
	return photos
}

// Download opens the original for the given id. When the index has a
// matching record its recorded extension and display name are used; without
// one (or with its backing file gone) each allowed extension is probed in a
// fixed order so originals survive a lost index.
func (s *PhotoService) Download(id string) (*PhotoDownload, error) {
	for _, p := range s.store.ReadAll() {
		if p.ID != id {
			continue
		}
		if result, err := s.openOriginal(p.ID+p.OriginalExt, p.Name); err == nil {
			return result, nil
		}
		break
	}

	for _, ext := range models.DownloadProbeOrder {
		if result, err := s.openOriginal(id+ext, ""); err == nil {
			return result, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (s *PhotoService) openOriginal(filename, displayName string) (*PhotoDownload, error) {
	file, err := s.originals.Open(filename)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, err
	}
	if displayName == "" {
		displayName = filepath.Base(filename)
	}
	return &PhotoDownload{File: file, Filename: displayName, SizeBytes: info.Size()}, nil
}

// removeQuiet is the best-effort rollback: the primary error already
// explains the failure, so cleanup problems are only logged.
func (s *PhotoService) removeQuiet(storage photoStorage, filename string) {
	if err := storage.Delete(filename); err != nil {
		s.logger.Warn("rollback cleanup failed", zap.String("file", filename), zap.Error(err))
	}
}

func newPhotoID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// sanitizeFilename reduces a client-supplied filename to a safe basename
// used only for download naming.
func sanitizeFilename(raw string) string {
	base := filepath.Base(strings.ReplaceAll(raw, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
