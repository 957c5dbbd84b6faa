// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package metadata implements the view_*/fetch_* enrichment operations
// (spec §4.9): a fixed ordering of providers is queried one after another,
// in that order, for
// an artist, album, album-tracks, or track candidate record; the
// candidates are folded into one record (name first-present, properties
// primary-wins, cover larger-of-two); view_* returns the folded record,
// fetch_* additionally commits it to the catalog.
package metadata
