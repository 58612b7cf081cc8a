package ranking

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

const defaultArtifactExt = ".csv"

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// Scope owns the temporary artifact of a single request. The artifact is created at most
// once and removed exactly once by Release, whatever happened in between.
type Scope struct {
	dir      string
	path     string
	released bool
	once     sync.Once
}

// NewScope returns a scope that will place its artifact under dir. Nothing touches the
// filesystem until Create is called.
func NewScope(dir string) *Scope {
	return &Scope{dir: dir}
}

// Create opens the request's artifact for writing. The name is a fresh UUID so concurrent
// requests never collide; only a short alphanumeric extension of the client filename is kept.
func (s *Scope) Create(filename string) (*os.File, error) {
	if s.released {
		return nil, internalError("artifact scope already released", nil)
	}
	if s.path != "" {
		return nil, internalError("artifact already created for this request", nil)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, internalError("failed to create artifact directory", err)
	}

	path := filepath.Join(s.dir, uuid.NewString()+artifactExt(filename))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, internalError("failed to create artifact", err)
	}
	s.path = path
	return f, nil
}

// Path is the artifact location, or "" when none exists (not yet created, or released)
func (s *Scope) Path() string {
	if s.released {
		return ""
	}
	return s.path
}

// Release removes the artifact if one was created. Removal failures are logged and
// swallowed so they never replace the request's own outcome.
func (s *Scope) Release() {
	s.once.Do(func() {
		s.released = true
		if s.path == "" {
			return
		}
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf(`{"level":"error","message":"Failed to remove artifact","path":"%s","error":"%v"}`, s.path, err)
		}
	})
}

func artifactExt(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if !safeExt.MatchString(ext) {
		return defaultArtifactExt
	}
	return ext
}
