// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import "encoding/xml"

// protocolVersion is the Subsonic API version Sonar claims compatibility
// with; OpenSubsonic clients additionally check the openSubsonic flag
// rather than gating features on this number.
const protocolVersion = "1.16.1"

// serverType and serverVersion identify Sonar itself in every envelope, the
// OpenSubsonic extension fields clients use to tell servers apart.
const (
	serverType    = "sonar"
	serverVersion = "1.0.0"
)

// Response is the single envelope every method returns, exactly one of its
// pointer fields populated. Both JSON and XML rendering key off the same
// struct; see render.go for how each format is produced.
type Response struct {
	XMLName       xml.Name       `xml:"subsonic-response" json:"-"`
	Status        string         `xml:"status,attr" json:"status"`
	Version       string         `xml:"version,attr" json:"version"`
	Type          string         `xml:"type,attr" json:"type"`
	ServerVersion string         `xml:"serverVersion,attr" json:"serverVersion"`
	OpenSubsonic  bool           `xml:"openSubsonic,attr" json:"openSubsonic"`
	Error         *Error         `xml:"error,omitempty" json:"error,omitempty"`
	License       *License       `xml:"license,omitempty" json:"license,omitempty"`
	MusicFolders  *MusicFolders  `xml:"musicFolders,omitempty" json:"musicFolders,omitempty"`
	Indexes       *Indexes       `xml:"indexes,omitempty" json:"indexes,omitempty"`
	Artists       *ArtistsID3    `xml:"artists,omitempty" json:"artists,omitempty"`
	Artist        *ArtistID3     `xml:"artist,omitempty" json:"artist,omitempty"`
	Album         *AlbumID3      `xml:"album,omitempty" json:"album,omitempty"`
	Song          *Child         `xml:"song,omitempty" json:"song,omitempty"`
	AlbumList2    *AlbumList2    `xml:"albumList2,omitempty" json:"albumList2,omitempty"`
	SearchResult3 *SearchResult3 `xml:"searchResult3,omitempty" json:"searchResult3,omitempty"`
	Playlists     *Playlists     `xml:"playlists,omitempty" json:"playlists,omitempty"`
	Playlist      *PlaylistWithSongs `xml:"playlist,omitempty" json:"playlist,omitempty"`
	Starred2      *Starred2      `xml:"starred2,omitempty" json:"starred2,omitempty"`
}

// errorCode enumerates the Subsonic error taxonomy (spec §6 "Subsonic error
// codes"). Values match the upstream API exactly so clients that switch on
// the numeric code keep working.
type errorCode int

const (
	errGeneric                        errorCode = 0
	errRequiredParameterMissing       errorCode = 10
	errIncompatibleClient             errorCode = 20
	errIncompatibleServer             errorCode = 30
	errWrongUsernameOrPassword        errorCode = 40
	errTokenAuthenticationNotSupported errorCode = 41
	errNotAuthorized                  errorCode = 50
	errTrialExpired                   errorCode = 60
	errDataNotFound                   errorCode = 70
)

// Error is the error body a failed call carries instead of a result.
type Error struct {
	Code    int    `xml:"code,attr" json:"code"`
	Message string `xml:"message,attr" json:"message"`
}

// License reports an always-valid license: Sonar is self-hosted and has no
// license server to phone home to.
type License struct {
	Valid bool `xml:"valid,attr" json:"valid"`
}

// MusicFolders lists the server's top-level library roots. Sonar has
// exactly one, unnamed catalog, so it reports a single synthetic folder.
type MusicFolders struct {
	MusicFolder []MusicFolder `xml:"musicFolder" json:"musicFolder"`
}

type MusicFolder struct {
	ID   int    `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
}

// Indexes groups every artist by the first letter of its name, the
// directory-browsing view older Subsonic clients still default to.
type Indexes struct {
	LastModified int64   `xml:"lastModified,attr" json:"lastModified"`
	IgnoredArticles string `xml:"ignoredArticles,attr" json:"ignoredArticles"`
	Index        []IndexEntry `xml:"index" json:"index"`
}

type IndexEntry struct {
	Name   string      `xml:"name,attr" json:"name"`
	Artist []ArtistID3 `xml:"artist" json:"artist"`
}

// ArtistsID3 is the ID3-tagged equivalent of Indexes, used by getArtists.
type ArtistsID3 struct {
	IgnoredArticles string       `xml:"ignoredArticles,attr" json:"ignoredArticles"`
	Index           []IndexEntry `xml:"index" json:"index"`
}

type ArtistID3 struct {
	ID         string     `xml:"id,attr" json:"id"`
	Name       string     `xml:"name,attr" json:"name"`
	CoverArt   string     `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	AlbumCount int        `xml:"albumCount,attr" json:"albumCount"`
	Starred    string     `xml:"starred,attr,omitempty" json:"starred,omitempty"`
	Album      []AlbumID3 `xml:"album,omitempty" json:"album,omitempty"`
}

type AlbumID3 struct {
	ID        string  `xml:"id,attr" json:"id"`
	Name      string  `xml:"name,attr" json:"name"`
	Artist    string  `xml:"artist,attr" json:"artist"`
	ArtistID  string  `xml:"artistId,attr" json:"artistId"`
	CoverArt  string  `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	SongCount int     `xml:"songCount,attr" json:"songCount"`
	Duration  int     `xml:"duration,attr" json:"duration"`
	Created   string  `xml:"created,attr" json:"created"`
	Starred   string  `xml:"starred,attr,omitempty" json:"starred,omitempty"`
	Song      []Child `xml:"song,omitempty" json:"song,omitempty"`
}

// Child is a song entry, the one node shape Subsonic reuses for every song
// listing (album contents, search hits, playlist entries).
type Child struct {
	ID          string `xml:"id,attr" json:"id"`
	Parent      string `xml:"parent,attr,omitempty" json:"parent,omitempty"`
	IsDir       bool   `xml:"isDir,attr" json:"isDir"`
	Title       string `xml:"title,attr" json:"title"`
	Album       string `xml:"album,attr,omitempty" json:"album,omitempty"`
	Artist      string `xml:"artist,attr,omitempty" json:"artist,omitempty"`
	Track       int    `xml:"track,attr,omitempty" json:"track,omitempty"`
	CoverArt    string `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	Size        int64  `xml:"size,attr,omitempty" json:"size,omitempty"`
	ContentType string `xml:"contentType,attr,omitempty" json:"contentType,omitempty"`
	Duration    int    `xml:"duration,attr,omitempty" json:"duration,omitempty"`
	BitRate     int    `xml:"bitRate,attr,omitempty" json:"bitRate,omitempty"`
	AlbumID     string `xml:"albumId,attr,omitempty" json:"albumId,omitempty"`
	ArtistID    string `xml:"artistId,attr,omitempty" json:"artistId,omitempty"`
	Type        string `xml:"type,attr,omitempty" json:"type,omitempty"`
	Created     string `xml:"created,attr,omitempty" json:"created,omitempty"`
	Starred     string `xml:"starred,attr,omitempty" json:"starred,omitempty"`
}

type AlbumList2 struct {
	Album []AlbumID3 `xml:"album" json:"album"`
}

type SearchResult3 struct {
	Artist []ArtistID3 `xml:"artist" json:"artist"`
	Album  []AlbumID3  `xml:"album" json:"album"`
	Song   []Child     `xml:"song" json:"song"`
}

type Playlists struct {
	Playlist []PlaylistID3 `xml:"playlist" json:"playlist"`
}

type PlaylistID3 struct {
	ID        string `xml:"id,attr" json:"id"`
	Name      string `xml:"name,attr" json:"name"`
	Owner     string `xml:"owner,attr" json:"owner"`
	Public    bool   `xml:"public,attr" json:"public"`
	SongCount int    `xml:"songCount,attr" json:"songCount"`
	Duration  int    `xml:"duration,attr" json:"duration"`
	Created   string `xml:"created,attr" json:"created"`
	Changed   string `xml:"changed,attr" json:"changed"`
	CoverArt  string `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
}

type PlaylistWithSongs struct {
	PlaylistID3
	Entry []Child `xml:"entry" json:"entry"`
}

type Starred2 struct {
	Artist []ArtistID3 `xml:"artist" json:"artist"`
	Album  []AlbumID3  `xml:"album" json:"album"`
	Song   []Child     `xml:"song" json:"song"`
}
