package checkpoint

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Store persists the set of completed sentence indices as a single
// line of comma-separated decimals. The file is the source of truth
// for which rows a resumed run may skip.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store backed by the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the completed index set from disk. A missing file means
// no progress and returns an empty set. Tokens tolerate surrounding
// whitespace; anything non-numeric is a corrupt checkpoint and is
// reported rather than silently dropped.
func (s *Store) Load() (map[int]bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[int]bool), nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return make(map[int]bool), nil
	}

	completed := make(map[int]bool)
	for _, token := range strings.Split(content, ",") {
		token = strings.TrimSpace(token)
		index, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("corrupt checkpoint entry %q in %s: %w", token, s.path, err)
		}
		completed[index] = true
	}

	s.logger.Info("Checkpoint loaded", "path", s.path, "completed", len(completed))
	return completed, nil
}

// Save writes the completed index set, replacing any previous content.
// Indices are written in ascending order so the file diffs cleanly
// between runs. The write goes through a temp file and rename.
func (s *Store) Save(completed map[int]bool) error {
	indices := make([]int, 0, len(completed))
	for index := range completed {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	tokens := make([]string, len(indices))
	for i, index := range indices {
		tokens[i] = strconv.Itoa(index)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(strings.Join(tokens, ",")), 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	s.logger.Debug("Checkpoint saved", "path", s.path, "completed", len(indices))
	return nil
}
