// Package blobstore stores uploaded files (exam results, patient photos,
// doctor signatures). Records keep only the returned key.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Errors and validation
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound       = errors.New("file not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// DefaultMaxSize applies when a store is built with a non-positive limit.
const DefaultMaxSize = 10 << 20

// AllowedContentTypes are the file types the clinic accepts.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/pdf": true,
	"text/plain":      true,
}

// Object describes a stored file.
type Object struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is implemented by the in-memory and S3 backends.
type Store interface {
	Put(ctx context.Context, prefix string, obj Object, content io.Reader) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

// prepare validates obj, reads at most maxSize bytes of content and fills in
// the key, size and hash.
func prepare(prefix string, obj Object, content io.Reader, maxSize int64) (Object, []byte, error) {
	if strings.TrimSpace(obj.FileName) == "" {
		return obj, nil, ErrMissingFileName
	}
	mediaType, _, err := mime.ParseMediaType(obj.ContentType)
	if err != nil || !AllowedContentTypes[mediaType] {
		return obj, nil, fmt.Errorf("%w: %q", ErrInvalidContentType, obj.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, maxSize+1))
	if err != nil {
		return obj, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > maxSize {
		return obj, nil, ErrFileTooLarge
	}

	obj.ContentType = mediaType
	obj.FileName = path.Base(obj.FileName)
	obj.Key = path.Join(prefix, uuid.New().String()+path.Ext(obj.FileName))
	obj.Size = int64(len(data))
	obj.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	obj.CreatedAt = time.Now().UTC()
	return obj, data, nil
}

// ---------------------------------------------------------------------------
// In-memory backend
// ---------------------------------------------------------------------------

type storedBlob struct {
	obj     Object
	content []byte
}

// MemoryStore keeps files in process memory. Development and tests only.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string]*storedBlob
	maxSize int64
}

func NewMemoryStore(maxSize int64) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &MemoryStore{blobs: make(map[string]*storedBlob), maxSize: maxSize}
}

func (s *MemoryStore) Put(_ context.Context, prefix string, obj Object, content io.Reader) (*Object, error) {
	obj, data, err := prepare(prefix, obj, content, s.maxSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.blobs[obj.Key] = &storedBlob{obj: obj, content: data}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	obj := blob.obj
	return io.NopCloser(bytes.NewReader(blob.content)), &obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// ContentDisposition is the attachment header for serving obj.
func ContentDisposition(obj *Object) string {
	name := obj.FileName
	if name == "" {
		name = path.Base(obj.Key)
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
