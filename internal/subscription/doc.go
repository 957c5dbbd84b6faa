// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package subscription persists per-user subscriptions to an external id
// and periodically re-submits each one's root external id to the download
// orchestrator (spec §4.8), the mechanism by which new albums or tracks
// under a subscribed artist keep appearing in the catalog without the
// user re-requesting a download by hand.
package subscription
