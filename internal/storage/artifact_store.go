// Package storage keeps submitted receipt artifacts on the local
// filesystem under a single base directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArtifactStore defines artifact persistence operations. Deletion takes a
// reason tag so cleanup paths are distinguishable in the logs.
type ArtifactStore interface {
	Save(filename string, content []byte) (string, error)
	Delete(path, reason string)
}

// LocalArtifactStore implements ArtifactStore on the local filesystem
type LocalArtifactStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalArtifactStore creates a store rooted at baseDir
func NewLocalArtifactStore(baseDir string, logger *zap.Logger) *LocalArtifactStore {
	return &LocalArtifactStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content under the base directory and returns the stored
// path (the artifact handle). A UUID prefix keeps same-named uploads from
// colliding.
func (s *LocalArtifactStore) Save(filename string, content []byte) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	fullPath := filepath.Join(s.baseDir, name)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		s.logger.Error("Failed to create artifact directory",
			zap.String("dir", s.baseDir), zap.Error(err))
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write artifact",
			zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	s.logger.Debug("Artifact saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))
	return fullPath, nil
}

// Delete removes an artifact. Best effort and idempotent: a missing file
// or a failed removal is logged, never escalated.
func (s *LocalArtifactStore) Delete(path, reason string) {
	if path == "" {
		return
	}

	if err := s.validatePath(path); err != nil {
		s.logger.Warn("Refusing to delete artifact outside base directory",
			zap.String("path", path), zap.String("reason", reason))
		return
	}

	err := os.Remove(path)
	switch {
	case err == nil:
		s.logger.Info("Artifact deleted",
			zap.String("path", path),
			zap.String("reason", reason))
	case os.IsNotExist(err):
		s.logger.Debug("Artifact already gone",
			zap.String("path", path),
			zap.String("reason", reason))
	default:
		s.logger.Warn("Failed to delete artifact",
			zap.String("path", path),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// validatePath rejects paths that escape the base directory
func (s *LocalArtifactStore) validatePath(fullPath string) error {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "artifact"
	}
	return name
}
