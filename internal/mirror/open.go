package mirror

import (
	"fmt"

	"github.com/weiawesome/chat-client/internal/config"
	"github.com/weiawesome/chat-client/pkg/database"
)

// Open builds the Mirror selected by cfg.Driver.
func Open(cfg config.MirrorConfig) (*Mirror, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Driver {
	case "", "memory":
		backend = NewMemoryBackend()
	case "file":
		backend, err = NewFileBackend(cfg.File.Path)
	case "redis":
		backend, err = NewRedisBackend(cfg.Redis)
	case "sqlite", "postgres", "mysql":
		backend, err = NewSQLBackend(&database.Config{
			Driver:   cfg.Driver,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			FilePath: cfg.Database.FilePath,
		})
	default:
		return nil, fmt.Errorf("unsupported mirror driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return New(backend), nil
}
