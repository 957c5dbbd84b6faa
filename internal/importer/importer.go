// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package importer implements the bounded-concurrency file import pipeline
// (spec §4.5): a semaphore-gated worker stages the upload to a temp file,
// runs every configured extractor against it in parallel, merges their
// output first-wins with a path-component fallback, and materializes an
// artist/album/track/audio row set through the catalog services. Each
// service call commits its own transaction, so a failure part-way through
// leaves the rows created before it in place.
package importer

import (
	"context"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/metrics"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// Metadata is what one extractor recovers from a file. Empty strings and
// nil pointers mean "not found", letting the merge step fall through to
// the next extractor or the path-derived fallback.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber *int
	DiscNumber  *int
}

// Extractor recovers Metadata from a staged file. Extractors run
// concurrently and independently; a failing extractor does not fail the
// import, it simply contributes nothing to the merge.
type Extractor interface {
	Name() string
	Extract(filepath string) (Metadata, error)
}

// Config bounds the pipeline's resource usage.
type Config struct {
	MaxImportSizeBytes  int64
	MaxConcurrentImport int
}

// Importer runs the pipeline described in the package doc.
type Importer struct {
	cfg        Config
	sem        *semaphore.Weighted
	extractors []Extractor

	artists *catalog.ArtistService
	albums  *catalog.AlbumService
	tracks  *catalog.TrackService
	audio   *catalog.AudioService
}

// New constructs an Importer bound to the given catalog services.
func New(cfg Config, extractors []Extractor, artists *catalog.ArtistService, albums *catalog.AlbumService, tracks *catalog.TrackService, audio *catalog.AudioService) *Importer {
	if cfg.MaxConcurrentImport <= 0 {
		cfg.MaxConcurrentImport = 4
	}
	return &Importer{
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentImport)),
		extractors: extractors,
		artists:    artists,
		albums:     albums,
		tracks:     tracks,
		audio:      audio,
	}
}

// Import is one file submitted to the pipeline. ArtistID/AlbumID, when set,
// skip the find-or-create step for that level; Filepath, when set, seeds
// the path-component fallback and becomes the audio row's filename.
type Import struct {
	ArtistID *ids.ArtistID
	AlbumID  *ids.AlbumID
	Filepath string
	Data     io.Reader
}

// Run executes the pipeline for one Import and returns the resulting
// track, fully materialized with its preferred audio set (spec §4.5,
// §8 "import a file with path-derived artist/album").
func (imp *Importer) Run(ctx context.Context, in Import) (_ catalog.Track, err error) {
	defer func() {
		if err != nil {
			metrics.ImportsTotal.WithLabelValues(sonarerr.KindOf(err).String()).Inc()
		} else {
			metrics.ImportsTotal.WithLabelValues("success").Inc()
		}
	}()

	if err := imp.sem.Acquire(ctx, 1); err != nil {
		return catalog.Track{}, sonarerr.WrapInternal(err, "acquire import slot")
	}
	defer imp.sem.Release(1)

	tmpFile, err := stageToTempFile(in.Filepath, in.Data, imp.cfg.MaxImportSizeBytes)
	if err != nil {
		return catalog.Track{}, err
	}
	defer os.Remove(tmpFile)

	metadatas := imp.runExtractors(tmpFile)

	pathArtist, pathAlbum, pathName := pathComponents(in.Filepath)

	trackName := firstNonEmpty(mapMetadata(metadatas, func(m Metadata) string { return m.Title }), pathName)
	if trackName == "" {
		return catalog.Track{}, sonarerr.Invalidf("unable to determine track name for %q", in.Filepath)
	}

	artistID, err := imp.resolveArtist(ctx, in.ArtistID, firstNonEmpty(mapMetadata(metadatas, func(m Metadata) string { return m.Artist }), pathArtist), in.Filepath)
	if err != nil {
		return catalog.Track{}, err
	}
	albumID, err := imp.resolveAlbum(ctx, in.AlbumID, artistID, firstNonEmpty(mapMetadata(metadatas, func(m Metadata) string { return m.Album }), pathAlbum), in.Filepath)
	if err != nil {
		return catalog.Track{}, err
	}

	var props []catalog.PropertyUpdate
	if trackNum := firstNonNilInt(metadatas, func(m Metadata) *int { return m.TrackNumber }); trackNum != nil {
		props = append(props, catalog.PropertyUpdate{Key: "track_number", Value: strconv.Itoa(*trackNum), Action: catalog.PropertySet})
	}
	if discNum := firstNonNilInt(metadatas, func(m Metadata) *int { return m.DiscNumber }); discNum != nil {
		props = append(props, catalog.PropertyUpdate{Key: "disc_number", Value: strconv.Itoa(*discNum), Action: catalog.PropertySet})
	}

	track, err := imp.tracks.Create(ctx, catalog.TrackCreate{
		Name:       trackName,
		AlbumID:    albumID,
		Properties: props,
	})
	if err != nil {
		return catalog.Track{}, err
	}

	f, err := os.Open(tmpFile)
	if err != nil {
		return catalog.Track{}, sonarerr.WrapInternal(err, "reopen staged file for audio ingest")
	}
	defer f.Close()

	filename := path.Base(in.Filepath)
	audioMeta, _ := probeAudio(tmpFile)
	audioRow, err := imp.audio.Create(ctx, catalog.AudioCreate{
		Bitrate:    audioMeta.Bitrate,
		DurationMS: audioMeta.DurationMS,
		Channels:   audioMeta.Channels,
		SampleRate: audioMeta.SampleRate,
		MimeType:   audioMeta.MimeType,
		Filename:   &filename,
		Data:       f,
	})
	if err != nil {
		return catalog.Track{}, err
	}

	if err := imp.tracks.AddAudio(ctx, track.ID, audioRow.ID, true); err != nil {
		return catalog.Track{}, err
	}

	return imp.tracks.Get(ctx, track.ID)
}

func (imp *Importer) resolveArtist(ctx context.Context, explicit *ids.ArtistID, name, filepath string) (ids.ArtistID, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if name == "" {
		return 0, sonarerr.Invalidf("unable to determine artist name for %q", filepath)
	}
	a, err := imp.artists.FindOrCreateByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

func (imp *Importer) resolveAlbum(ctx context.Context, explicit *ids.AlbumID, artistID ids.ArtistID, name, filepath string) (ids.AlbumID, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if name == "" {
		return 0, sonarerr.Invalidf("unable to determine album name for %q", filepath)
	}
	a, err := imp.albums.FindOrCreateByName(ctx, artistID, name)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

// runExtractors fans every configured extractor out over the staged file
// concurrently and collects whatever succeeds, in configuration order
// (spec §4.5 "first-wins merge").
func (imp *Importer) runExtractors(filepath string) []Metadata {
	results := make([]Metadata, len(imp.extractors))
	ok := make([]bool, len(imp.extractors))

	var wg sync.WaitGroup
	for i, extractor := range imp.extractors {
		wg.Add(1)
		go func(i int, extractor Extractor) {
			defer wg.Done()
			meta, err := extractor.Extract(filepath)
			if err != nil {
				return
			}
			results[i] = meta
			ok[i] = true
		}(i, extractor)
	}
	wg.Wait()

	out := make([]Metadata, 0, len(results))
	for i, present := range ok {
		if present {
			out = append(out, results[i])
		}
	}
	return out
}

func stageToTempFile(filepath string, data io.Reader, maxSize int64) (string, error) {
	name := path.Base(filepath)
	if name == "" || name == "." {
		name = "input"
	}
	f, err := os.CreateTemp("", "sonar-import-*-"+name)
	if err != nil {
		return "", sonarerr.WrapInternal(err, "create temp file for import")
	}
	defer f.Close()

	limit := maxSize
	if limit <= 0 {
		limit = 1 << 30 // 1 GiB default ceiling
	}
	n, err := io.Copy(f, io.LimitReader(data, limit+1))
	if err != nil {
		os.Remove(f.Name())
		return "", sonarerr.WrapInternal(err, "stage import to temp file")
	}
	if n > limit {
		os.Remove(f.Name())
		return "", sonarerr.Invalidf("file size exceeds maximum import size of %d bytes", limit)
	}
	return f.Name(), nil
}

func pathComponents(filepath string) (artist, album, name string) {
	parts := strings.Split(filepath, "/")
	if len(parts) < 3 {
		return "", "", ""
	}
	last := parts[len(parts)-1]
	if dot := strings.LastIndex(last, "."); dot > 0 {
		last = last[:dot]
	}
	return parts[len(parts)-3], parts[len(parts)-2], last
}

func mapMetadata(metadatas []Metadata, get func(Metadata) string) []string {
	out := make([]string, 0, len(metadatas))
	for _, m := range metadatas {
		if v := get(m); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(candidates []string, fallback string) string {
	if len(candidates) > 0 {
		return candidates[0]
	}
	return fallback
}

func firstNonNilInt(metadatas []Metadata, get func(Metadata) *int) *int {
	for _, m := range metadatas {
		if v := get(m); v != nil {
			return v
		}
	}
	return nil
}
