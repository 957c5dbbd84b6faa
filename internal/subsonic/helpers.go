// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"fmt"
	"strconv"

	"github.com/sonarhost/sonar/internal/ids"
)

// parseSongIDs parses a repeated "songId" query parameter into track ids,
// failing on the first one that isn't a track id at all rather than
// silently dropping it.
func parseSongIDs(raw []string) ([]ids.TrackID, error) {
	out := make([]ids.TrackID, 0, len(raw))
	for _, v := range raw {
		id, err := ids.ParseKind(v, ids.KindTrack)
		if err != nil {
			return nil, fmt.Errorf("invalid songId %q: %w", v, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
