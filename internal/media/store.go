package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"emotrack/internal/emotion"
	"emotrack/internal/imaging"
	"emotrack/internal/services"
)

const (
	defaultBucket        = "otros"
	defaultThumbnailSize = 320
)

// ErrOutsideRoot indicates a relative path that would escape the storage root.
var ErrOutsideRoot = errors.New("path escapes storage root")

// ErrTooLarge indicates an upload that exceeded the configured size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Layout names the storage root and its subdirectories.
type Layout struct {
	Root           string
	RawSubdir      string
	SnapshotSubdir string
	EmotionSubdir  string
	StreamSubdir   string
	ThumbnailSize  int
	JPEGQuality    int
}

// Store writes media files under a root directory.
type Store struct {
	layout Layout
	now    func() time.Time
}

// New prepares the directory tree for layout and returns a Store.
func New(layout Layout) (*Store, error) {
	root := strings.TrimSpace(layout.Root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "media", "new", "storage root is required", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	layout.Root = abs
	if layout.RawSubdir == "" {
		layout.RawSubdir = "raw"
	}
	if layout.SnapshotSubdir == "" {
		layout.SnapshotSubdir = "snapshots"
	}
	if layout.EmotionSubdir == "" {
		layout.EmotionSubdir = "emotion_class"
	}
	if layout.StreamSubdir == "" {
		layout.StreamSubdir = "session_stream"
	}
	if layout.ThumbnailSize <= 0 {
		layout.ThumbnailSize = defaultThumbnailSize
	}

	dirs := []string{layout.RawSubdir, layout.SnapshotSubdir, layout.EmotionSubdir, layout.StreamSubdir}
	for _, sub := range dirs {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return nil, services.Wrap(services.ErrStorageFailure, "media", "prepare", sub, err)
		}
	}
	for _, label := range emotion.Labels() {
		if err := os.MkdirAll(filepath.Join(abs, layout.EmotionSubdir, label.Slug()), 0o755); err != nil {
			return nil, services.Wrap(services.ErrStorageFailure, "media", "prepare", label.Slug(), err)
		}
	}
	return &Store{layout: layout, now: time.Now}, nil
}

// Root returns the absolute storage root.
func (s *Store) Root() string {
	return s.layout.Root
}

// Layout returns the normalized layout.
func (s *Store) Layout() Layout {
	return s.layout
}

// SaveLabelSnapshot writes a live-session snapshot for label as
// <emotion>/<slug>/<slug>_<session>_<suffix>.jpg and returns its relative path.
func (s *Store) SaveLabelSnapshot(sessionID string, label emotion.Label, img image.Image, suffix string) (string, error) {
	slug := label.Slug()
	if suffix == "" {
		suffix = fmt.Sprintf("%d", s.now().Unix())
	}
	rel := joinRel(s.layout.EmotionSubdir, slug, fmt.Sprintf("%s_%s_%s.jpg", slug, sessionID, suffix))
	if err := s.writeThumbnail(rel, img); err != nil {
		return "", err
	}
	return rel, nil
}

// SaveSnapshot writes a representative snapshot for an uploaded analysis as
// <snapshots>/<bucket>/snapshot_<slug>_<id>.jpg and returns its relative path.
func (s *Store) SaveSnapshot(img image.Image, label emotion.Label, bucket string) (string, error) {
	name := fmt.Sprintf("snapshot_%s_%s.jpg", label.Slug(), newID())
	rel := joinRel(s.layout.SnapshotSubdir, NormalizeBucket(bucket), name)
	if err := s.writeThumbnail(rel, img); err != nil {
		return "", err
	}
	return rel, nil
}

// SaveRaw streams an upload to <raw>/<bucket>/<unix>_<name>. A positive limit
// caps the number of bytes accepted; exceeding it removes the partial file and
// returns ErrTooLarge.
func (s *Store) SaveRaw(r io.Reader, filename, bucket string, limit int64) (string, error) {
	name := SecureFilename(filename)
	if name == "" {
		name = "media_" + newID()
	}
	rel := joinRel(s.layout.RawSubdir, NormalizeBucket(bucket), fmt.Sprintf("%d_%s", s.now().Unix(), name))
	abs := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", services.Wrap(services.ErrStorageFailure, "media", "save raw", "create directory", err)
	}

	dst, err := os.Create(abs)
	if err != nil {
		return "", services.Wrap(services.ErrStorageFailure, "media", "save raw", "create file", err)
	}
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(abs)
		return "", services.Wrap(services.ErrStorageFailure, "media", "save raw", "write file", err)
	}
	if limit > 0 && written > limit {
		_ = os.Remove(abs)
		return "", services.Wrap(services.ErrValidation, "media", "save raw", name, ErrTooLarge)
	}
	return rel, nil
}

// StreamPath allocates the video path for a live session. The directory is
// created; the file is not.
func (s *Store) StreamPath(sessionID string, startedAt time.Time) (string, string, error) {
	name := fmt.Sprintf("session_%s_%s.mp4", startedAt.Format("20060102_150405"), sessionID)
	rel := joinRel(s.layout.StreamSubdir, name)
	abs := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", "", services.Wrap(services.ErrStorageFailure, "media", "stream path", "create directory", err)
	}
	return abs, rel, nil
}

// Resolve maps a root-relative path to an absolute one.
func (s *Store) Resolve(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", ErrOutsideRoot
	}
	return filepath.Join(s.layout.Root, cleaned), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	abs, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) writeThumbnail(rel string, img image.Image) error {
	thumb, err := imaging.Thumbnail(img, s.layout.ThumbnailSize)
	if err != nil {
		return services.Wrap(services.ErrStorageFailure, "media", "snapshot", "prepare image", err)
	}
	abs := s.abs(rel)
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrStorageFailure, "media", "snapshot", "create directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.jpg")
	if err != nil {
		return services.Wrap(services.ErrStorageFailure, "media", "snapshot", "create temp file", err)
	}
	tmpName := tmp.Name()
	if err := imaging.EncodeJPEG(tmp, thumb, s.layout.JPEGQuality); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return services.Wrap(services.ErrStorageFailure, "media", "snapshot", "encode jpeg", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return services.Wrap(services.ErrStorageFailure, "media", "snapshot", "close file", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		_ = os.Remove(tmpName)
		return services.Wrap(services.ErrStorageFailure, "media", "snapshot", "rename", err)
	}
	return nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.layout.Root, filepath.FromSlash(rel))
}

// NormalizeBucket turns a free-form category into a safe directory name.
func NormalizeBucket(category string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(category)), " ", "-")
	var b strings.Builder
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	cleaned := b.String()
	for strings.Contains(cleaned, "--") {
		cleaned = strings.ReplaceAll(cleaned, "--", "-")
	}
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return defaultBucket
	}
	return cleaned
}

// SecureFilename reduces an uploaded filename to a safe ASCII base name.
func SecureFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

func joinRel(parts ...string) string {
	return filepath.ToSlash(filepath.Join(parts...))
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
