package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"go.uber.org/zap"
)

// FileCache persists the MSAL token cache to a single file so the session
// survives between runs. An unreadable or corrupt file counts as an empty
// cache.
type FileCache struct {
	Path   string
	Logger *zap.Logger
}

var _ cache.ExportReplace = (*FileCache)(nil)

func NewFileCache(path string, logger *zap.Logger) *FileCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCache{Path: path, Logger: logger}
}

func (c *FileCache) Replace(_ context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		c.Logger.Warn("token cache unreadable, ignoring", zap.String("path", c.Path), zap.Error(err))
		return nil
	}
	if err := u.Unmarshal(data); err != nil {
		c.Logger.Warn("token cache corrupt, ignoring", zap.String("path", c.Path), zap.Error(err))
	}
	return nil
}

// Export never fails the token call it is attached to: a cache that cannot
// be written only costs a sign-in on the next run.
func (c *FileCache) Export(_ context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	if err := c.write(m); err != nil {
		c.Logger.Warn("token cache not written", zap.String("path", c.Path), zap.Error(err))
	}
	return nil
}

func (c *FileCache) write(m cache.Marshaler) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("auth: marshal token cache: %w", err)
	}
	dir := filepath.Dir(c.Path)
	tmp, err := os.CreateTemp(dir, ".token_cache-*")
	if err != nil {
		return fmt.Errorf("auth: write token cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: write token cache: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: write token cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path); err != nil {
		return fmt.Errorf("auth: write token cache: %w", err)
	}
	return nil
}
