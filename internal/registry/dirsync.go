package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DirSync bridges schemas-directory file events to registry operations. It
// remembers which table each file registered so that deleting a file removes
// the right table even when the table name differs from the file name.
type DirSync struct {
	manager *Manager
	logger  *zap.Logger
	mu      sync.Mutex
	byPath  map[string]string // schema file path -> table name
}

// NewDirSync creates a DirSync over the manager.
func NewDirSync(manager *Manager, logger *zap.Logger) *DirSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirSync{
		manager: manager,
		logger:  logger,
		byPath:  make(map[string]string),
	}
}

// OnUpsert loads the schema file at path and registers it.
func (s *DirSync) OnUpsert(path string) {
	schema, err := LoadSchemaFile(path)
	if err != nil {
		s.logger.Warn("schema file skipped", zap.String("path", path), zap.Error(err))
		return
	}
	if _, err := s.manager.AddTable(context.Background(), schema); err != nil {
		s.logger.Warn("schema file register failed", zap.String("path", path), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.byPath[path] = schema.Name
	s.mu.Unlock()
}

// OnRemove removes the table previously registered from path. Unknown paths
// are ignored.
func (s *DirSync) OnRemove(path string) {
	s.mu.Lock()
	name, ok := s.byPath[path]
	if ok {
		delete(s.byPath, path)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.manager.RemoveTable(context.Background(), name); err != nil {
		s.logger.Warn("schema file remove failed", zap.String("path", path), zap.Error(err))
	}
}
