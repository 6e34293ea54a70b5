package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/reading"
)

// Sentinel errors for audio uploads.
var (
	ErrUnsupportedAudioType = errors.New("unsupported audio type")
	ErrAudioTooLarge        = errors.New("audio file too large")
)

// Allowed audio MIME types for reading segments.
var allowedAudioMIMETypes = map[string]string{
	"audio/mp4":  ".m4a",
	"audio/m4a":  ".m4a",
	"audio/aac":  ".aac",
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"audio/wav":  ".wav",
}

// AudioService owns segment storage on disk. Staged segments from live
// sessions sit under <AudioDir>/staging until a submit drains them into the
// permanent <AudioDir>/<student>/<book>/<grade>/<page>/ layout.
//
// It implements reading.SegmentStore for the session controller.
type AudioService struct {
	cfg *config.Config
	log zerolog.Logger
}

// NewAudioService creates a new AudioService.
func NewAudioService(cfg *config.Config, log zerolog.Logger) *AudioService {
	return &AudioService{
		cfg: cfg,
		log: log.With().Str("component", "audio_service").Logger(),
	}
}

// SaveStaged writes an uploaded segment into the staging area and returns its
// local path for queueing on the session controller.
func (s *AudioService) SaveStaged(studentID int, bookID uuid.UUID, page int, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedAudioMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAudioType, contentType)
	}
	if header.Size > s.cfg.MaxAudioBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrAudioTooLarge, header.Size, s.cfg.MaxAudioBytes)
	}

	dir := s.stagingDir(studentID, bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	name := fmt.Sprintf("p%d-%s%s", page, uuid.New().String(), ext)
	destPath := filepath.Join(dir, name)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("write file: %w", err)
	}
	return destPath, nil
}

// Upload moves a staged segment into permanent storage, reporting byte-level
// progress. The destination name is derived from the staged filename, so a
// retried upload lands on the same path instead of duplicating.
func (s *AudioService) Upload(ctx context.Context, seg reading.Segment, onProgress func(float64)) (string, error) {
	src, err := os.Open(seg.LocalPath)
	if err != nil {
		return "", fmt.Errorf("open staged segment: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("stat staged segment: %w", err)
	}

	dir := s.permanentDir(seg.StudentID, seg.BookID, seg.GradeLevel, seg.Page)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create segment dir: %w", err)
	}
	destPath := filepath.Join(dir, filepath.Base(seg.LocalPath))

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create segment file: %w", err)
	}
	defer dst.Close()

	writer := &progressWriter{dst: dst, total: info.Size(), onProgress: onProgress}
	if _, err := io.Copy(writer, src); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("copy segment: %w", err)
	}
	if onProgress != nil {
		onProgress(1)
	}

	// Staged copy is no longer needed; failure here is not fatal.
	if err := os.Remove(seg.LocalPath); err != nil {
		s.log.Warn().Err(err).Str("path", seg.LocalPath).Msg("Remove staged segment failed")
	}

	rel, err := filepath.Rel(s.cfg.AudioDir, destPath)
	if err != nil {
		rel = destPath
	}
	return "/audio/" + filepath.ToSlash(rel), nil
}

// DeleteAll removes every stored and staged segment for a (student, book)
// pair. Missing directories count as success, so retries are safe.
func (s *AudioService) DeleteAll(ctx context.Context, studentID int, bookID uuid.UUID) error {
	for _, dir := range []string{
		s.bookDir(studentID, bookID),
		s.stagingDir(studentID, bookID),
	} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("purge %s: %w", dir, err)
		}
	}
	return nil
}

func (s *AudioService) stagingDir(studentID int, bookID uuid.UUID) string {
	return filepath.Join(s.cfg.AudioDir, "staging", strconv.Itoa(studentID), bookID.String())
}

func (s *AudioService) bookDir(studentID int, bookID uuid.UUID) string {
	return filepath.Join(s.cfg.AudioDir, strconv.Itoa(studentID), bookID.String())
}

func (s *AudioService) permanentDir(studentID int, bookID uuid.UUID, gradeLevel, page int) string {
	return filepath.Join(s.bookDir(studentID, bookID), strconv.Itoa(gradeLevel), strconv.Itoa(page))
}

// progressWriter reports cumulative write progress as a fraction of total.
type progressWriter struct {
	dst        io.Writer
	total      int64
	written    int64
	onProgress func(float64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.written += int64(n)
	if w.onProgress != nil && w.total > 0 {
		fraction := float64(w.written) / float64(w.total)
		if fraction > 1 {
			fraction = 1
		}
		w.onProgress(fraction)
	}
	return n, err
}
