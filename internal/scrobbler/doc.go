// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package scrobbler implements the scrobble dispatch workers (spec
// §4.10): one worker per registered scrobbler account, blocked on a
// level-triggered wake channel, that scans the catalog for scrobbles not
// yet submitted to its scrobbler and submits each in listened-at order.
package scrobbler
