package upload

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNoFile is returned when a request carries no file part.
	ErrNoFile = errors.New("no file provided")
	// ErrEmptyFilename is returned when the file part has an empty name.
	ErrEmptyFilename = errors.New("empty filename")
	// ErrUnsupportedType is returned when the filename extension is not on
	// the allow-list. Validation is extension-only; content is not sniffed.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// allowedExtensions is the fixed upload allow-list, matched
// case-insensitively on the extension only.
var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// StoredFile describes a successfully stored upload.
type StoredFile struct {
	// Name is the final on-disk file name: the content hash followed by the
	// sanitized original name. Distinct content never collides, and
	// re-uploading identical bytes is idempotent.
	Name     string
	Path     string
	SHA1Hash string
	Size     int64
}

// Store writes validated uploads into a single controlled directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.Named("upload")}, nil
}

// Save validates the filename, sanitizes it, and writes the content under a
// collision-free name.
func (s *Store) Save(fileName string, r io.Reader) (*StoredFile, error) {
	if fileName == "" {
		return nil, ErrEmptyFilename
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	sum := sha1.Sum(data)
	hash := hex.EncodeToString(sum[:])
	name := hash + "_" + SanitizeFilename(fileName)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("failed to write upload", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("write upload: %w", err)
	}

	s.logger.Info("stored upload",
		zap.String("file", name),
		zap.Int("size", len(data)),
		zap.String("sha1", hash))

	return &StoredFile{
		Name:     name,
		Path:     path,
		SHA1Hash: hash,
		Size:     int64(len(data)),
	}, nil
}

// SanitizeFilename strips path components and replaces anything outside
// [A-Za-z0-9._-] so the result is safe as a storage key.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}
