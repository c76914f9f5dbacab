package localdisk

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage is a file-per-key persistence collaborator. Each key maps to one
// JSON file under the base directory, so a basket survives process
// restarts. Writes go through a temp file and rename to stay readable after
// a crash mid-write.
type Storage struct {
	mu  sync.RWMutex
	dir string
}

func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Storage) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}

func (s *Storage) path(key string) string {
	// keys are flat identifiers; strip anything path-like to keep the
	// store confined to its directory
	key = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.':
			return '_'
		}
		return r
	}, key)
	return filepath.Join(s.dir, key+".json")
}
