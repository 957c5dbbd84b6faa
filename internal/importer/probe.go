// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package importer

import (
	"os"

	"github.com/dhowden/tag"
	"github.com/gabriel-vasile/mimetype"
)

// audioProbe is the subset of a staged file's container properties the
// pipeline needs to populate an AudioCreate. probeAudio fills only
// MimeType; there is no bitrate/duration/sample-rate decoder, so those
// fields are always zero.
type audioProbe struct {
	MimeType   string
	Bitrate    int64
	DurationMS int64
	Channels   int64
	SampleRate int64
}

// probeAudio detects the container mime type via content sniffing. Errors
// are non-fatal: the caller falls back to a zero-valued probe rather than
// failing the whole import over a media file whose format it can't fully
// characterize.
func probeAudio(filepath string) (audioProbe, error) {
	mtype, err := mimetype.DetectFile(filepath)
	if err != nil {
		return audioProbe{MimeType: "application/octet-stream"}, err
	}
	return audioProbe{MimeType: mtype.String()}, nil
}

// TagExtractor reads embedded tag metadata (ID3/FLAC/MP4/Vorbis) via
// dhowden/tag, the pack's tag library for import metadata extraction.
type TagExtractor struct{}

// Name identifies this extractor in logs.
func (TagExtractor) Name() string { return "tag" }

// Extract opens filepath and reads its embedded tags, if any.
func (TagExtractor) Extract(filepath string) (Metadata, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, err
	}

	meta := Metadata{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
	}
	if trackNum, _ := m.Track(); trackNum > 0 {
		meta.TrackNumber = &trackNum
	}
	if discNum, _ := m.Disc(); discNum > 0 {
		meta.DiscNumber = &discNum
	}
	return meta, nil
}
