// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import "testing"

func TestVideoSizeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want VideoSize
	}{
		{"standard", "1920x1080", VideoSize{1920, 1080}},
		{"square", "640x640", VideoSize{640, 640}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoSize(tt.in)
			if err != nil {
				t.Fatalf("ParseVideoSize(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseVideoSize(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Fatalf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestParseVideoSizeInvalid(t *testing.T) {
	for _, in := range []string{"", "1920", "1920x", "xWxH", "1920x1080x720"} {
		if _, err := ParseVideoSize(in); err == nil {
			t.Errorf("ParseVideoSize(%q): expected error, got nil", in)
		}
	}
}

func TestVideoBitrateRoundTrip(t *testing.T) {
	size := VideoSize{640, 360}
	tests := []struct {
		name string
		in   string
		want VideoBitrate
	}{
		{"with size", "128@640x360", VideoBitrate{Kbps: 128, Size: &size}},
		{"bare", "128", VideoBitrate{Kbps: 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoBitrate(tt.in)
			if err != nil {
				t.Fatalf("ParseVideoBitrate(%q): %v", tt.in, err)
			}
			if got.Kbps != tt.want.Kbps {
				t.Fatalf("Kbps = %d, want %d", got.Kbps, tt.want.Kbps)
			}
			if (got.Size == nil) != (tt.want.Size == nil) {
				t.Fatalf("Size presence mismatch: got %v, want %v", got.Size, tt.want.Size)
			}
			if got.Size != nil && *got.Size != *tt.want.Size {
				t.Fatalf("Size = %+v, want %+v", *got.Size, *tt.want.Size)
			}
			if got.String() != tt.in {
				t.Fatalf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestParseVideoBitrateList(t *testing.T) {
	got, err := ParseVideoBitrateList("128@640x360,256@960x720,1000")
	if err != nil {
		t.Fatalf("ParseVideoBitrateList: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[2].String() != "1000" {
		t.Fatalf("entry 2 = %q, want %q", got[2].String(), "1000")
	}

	if empty, err := ParseVideoBitrateList(""); err != nil || empty != nil {
		t.Fatalf("ParseVideoBitrateList(\"\") = %v, %v; want nil, nil", empty, err)
	}
}
