// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package blob

import (
	"github.com/sonarhost/sonar/internal/config"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// New constructs the Store selected by cfg.Backend.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		return NewFilesystemStore(cfg.FilesystemPath)
	default:
		return nil, sonarerr.Invalidf("unknown storage backend %q", cfg.Backend)
	}
}
