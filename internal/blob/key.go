// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package blob

import (
	"github.com/google/uuid"
)

// Kind prefixes a blob key so a key alone tells you which entity family it
// belongs to (spec §4.3: "opaque strings with a kind prefix").
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// NewKey builds a fresh "<kind>/<uuid>" key. The uuid suffix is random,
// never derived from content, so two identical uploads get distinct keys.
func NewKey(kind Kind) string {
	return string(kind) + "/" + uuid.NewString()
}
