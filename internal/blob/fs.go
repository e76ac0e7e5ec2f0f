package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxKeyAttempts = 4

// FSStore keeps blobs as plain files in a single directory.
type FSStore struct {
	root    string
	maxSize int64
	now     func() time.Time
}

// NewFSStore returns a store rooted at dir. The directory is created on the
// first write. maxSize <= 0 selects DefaultMaxSize.
func NewFSStore(dir string, maxSize int64) *FSStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &FSStore{root: dir, maxSize: maxSize, now: time.Now}
}

// Root returns the directory blobs are written to.
func (s *FSStore) Root() string {
	return s.root
}

// MaxSize returns the per-file byte cap.
func (s *FSStore) MaxSize() int64 {
	return s.maxSize
}

func (s *FSStore) Put(ctx context.Context, r io.Reader, originalName, mimeType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, unavailable(err)
	}
	if !AllowedTypes[mimeType] {
		return Object{}, errUnsupported
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return Object{}, unavailable(fmt.Errorf("create upload dir: %w", err))
	}

	var (
		f   *os.File
		key string
		err error
	)
	for attempt := 1; ; attempt++ {
		key = s.newKey(originalName)
		f, err = os.OpenFile(filepath.Join(s.root, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || attempt == maxKeyAttempts {
			return Object{}, unavailable(fmt.Errorf("create blob: %w", err))
		}
	}

	path := f.Name()
	src := &sourceReader{ctx: ctx, r: io.LimitReader(r, s.maxSize+1)}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		switch {
		case src.ctxErr != nil:
			return Object{}, unavailable(src.ctxErr)
		case src.err != nil:
			return Object{}, unreadable(src.err)
		default:
			return Object{}, unavailable(fmt.Errorf("write blob: %w", err))
		}
	}
	if n > s.maxSize {
		_ = os.Remove(path)
		return Object{}, errTooLarge
	}

	info, err := os.Stat(path)
	if err != nil {
		return Object{}, unavailable(err)
	}
	obj := objectFromInfo(key, info)
	obj.MimeType = mimeType
	return obj, nil
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, errNotFound
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errNotFound
		}
		return nil, unavailable(err)
	}
	return f, nil
}

// Exists never fails; any stat error counts as absent.
func (s *FSStore) Exists(ctx context.Context, key string) bool {
	if !validKey(key) {
		return false
	}
	info, err := os.Stat(filepath.Join(s.root, key))
	return err == nil && info.Mode().IsRegular()
}

func (s *FSStore) Stat(ctx context.Context, key string) (Object, error) {
	if !validKey(key) {
		return Object{}, errNotFound
	}
	info, err := os.Stat(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, errNotFound
		}
		return Object{}, unavailable(err)
	}
	if !info.Mode().IsRegular() {
		return Object{}, errNotFound
	}
	return objectFromInfo(key, info), nil
}

// List returns every blob in the root, sorted by key. A missing root is empty.
func (s *FSStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Object{}, nil
		}
		return nil, unavailable(err)
	}
	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		objects = append(objects, objectFromInfo(entry.Name(), info))
	}
	return objects, nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return errNotFound
	}
	if err := os.Remove(filepath.Join(s.root, key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errNotFound
		}
		return unavailable(err)
	}
	return nil
}

func (s *FSStore) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return rc, OriginalName(key), nil
}

func (s *FSStore) newKey(originalName string) string {
	return fmt.Sprintf("%d-%d-%s", s.now().UnixMilli(), uuid.New().ID(), SanitizeName(originalName))
}

// SanitizeName lowercases name and replaces everything outside [a-z0-9.] with '_'.
func SanitizeName(name string) string {
	name = strings.ToLower(filepath.Base(name))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	switch out := b.String(); out {
	case "", ".", "..":
		return "file"
	default:
		return out
	}
}

// OriginalName strips the timestamp and random prefix from a generated key.
func OriginalName(key string) string {
	parts := strings.SplitN(key, "-", 3)
	if len(parts) != 3 {
		return key
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return key
	}
	return parts[2]
}

var knownExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// GuessMIME infers a content type from the key's extension.
func GuessMIME(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if t, ok := knownExtensions[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return "application/octet-stream"
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}

func objectFromInfo(key string, info fs.FileInfo) Object {
	created := info.ModTime()
	if parts := strings.SplitN(key, "-", 2); len(parts) == 2 {
		if ms, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
			created = time.UnixMilli(ms)
		}
	}
	return Object{
		Key:          key,
		OriginalName: OriginalName(key),
		Size:         info.Size(),
		MimeType:     GuessMIME(key),
		CreatedAt:    created,
		ModifiedAt:   info.ModTime(),
	}
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && !strings.Contains(key, "\x00")
}

// sourceReader records failures of the upload stream so they are not
// mistaken for storage failures.
type sourceReader struct {
	ctx    context.Context
	r      io.Reader
	err    error
	ctxErr error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		s.ctxErr = err
		return 0, err
	}
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
