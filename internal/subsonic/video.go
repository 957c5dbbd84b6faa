// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"fmt"
	"strconv"
	"strings"
)

// VideoSize is a pixel width/height pair, encoded on the wire as "WxH"
// (e.g. "1920x1080"). Sonar serves no video, but the Subsonic hls.m3u8
// bitRate list and getVideoInfo responses name this encoding exactly, so
// the parser/printer live here even though nothing currently produces one.
type VideoSize struct {
	Width  int
	Height int
}

func (v VideoSize) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// MarshalText implements encoding.TextMarshaler, letting VideoSize appear
// as a plain attribute value under both the XML and JSON encoders.
func (v VideoSize) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VideoSize) UnmarshalText(text []byte) error {
	parsed, err := ParseVideoSize(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVideoSize parses the "WxH" form.
func ParseVideoSize(s string) (VideoSize, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return VideoSize{}, fmt.Errorf("subsonic: invalid video size %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return VideoSize{}, fmt.Errorf("subsonic: invalid video size %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return VideoSize{}, fmt.Errorf("subsonic: invalid video size %q: %w", s, err)
	}
	return VideoSize{Width: width, Height: height}, nil
}

// VideoBitrate is a kbps rate with an optional target resolution, encoded
// on the wire as "N" or "N@WxH" (the hls.m3u8 bitRate list form, e.g.
// "128@640x360,256@960x720" split on commas by the caller).
type VideoBitrate struct {
	Kbps int
	Size *VideoSize
}

func (v VideoBitrate) String() string {
	if v.Size == nil {
		return strconv.Itoa(v.Kbps)
	}
	return fmt.Sprintf("%d@%s", v.Kbps, v.Size)
}

func (v VideoBitrate) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *VideoBitrate) UnmarshalText(text []byte) error {
	parsed, err := ParseVideoBitrate(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVideoBitrate parses a single "N" or "N@WxH" entry.
func ParseVideoBitrate(s string) (VideoBitrate, error) {
	kbpsStr, sizeStr, hasSize := strings.Cut(s, "@")
	kbps, err := strconv.Atoi(kbpsStr)
	if err != nil {
		return VideoBitrate{}, fmt.Errorf("subsonic: invalid video bitrate %q: %w", s, err)
	}
	if !hasSize {
		return VideoBitrate{Kbps: kbps}, nil
	}
	size, err := ParseVideoSize(sizeStr)
	if err != nil {
		return VideoBitrate{}, fmt.Errorf("subsonic: invalid video bitrate %q: %w", s, err)
	}
	return VideoBitrate{Kbps: kbps, Size: &size}, nil
}

// ParseVideoBitrateList parses a comma-separated hls.m3u8 "bitRate" query
// parameter into its individual entries, in order.
func ParseVideoBitrateList(s string) ([]VideoBitrate, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	rates := make([]VideoBitrate, len(parts))
	for i, part := range parts {
		rate, err := ParseVideoBitrate(part)
		if err != nil {
			return nil, err
		}
		rates[i] = rate
	}
	return rates, nil
}
