package credstore

import (
	"fmt"
	"os"
	"path/filepath"

	"marketclient/internal/config"
)

// Open builds the Store named by config. The backend decision happens here,
// once; call sites receive a Store and stay backend-agnostic.
func Open(cfg config.StorageConfig, redisCfg config.RedisConfig, sessionID string) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(defaultPath(cfg.Path))
	case "encrypted":
		return NewEncrypted(defaultPath(cfg.Path), cfg.Passphrase)
	case "redis":
		return NewRedis(redisCfg, sessionID)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func defaultPath(path string) string {
	if path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".marketclient", "credentials")
}
