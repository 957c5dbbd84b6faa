// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package blob provides content-addressed-by-key (not by hash) opaque
// byte storage for audio and image data. MemoryStore and FilesystemStore
// are behavioral substitutes selected by config.StorageConfig.Backend;
// Sweep reclaims blobs no longer referenced by any catalog row.
package blob
