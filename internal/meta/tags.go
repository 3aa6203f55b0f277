package meta

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/franz/vaultify/internal/util"
)

// ReadTags reads title, artist, album and genre from the file's embedded
// tags. It never fails: unreadable or untagged files yield empty evidence.
func ReadTags(path string) *Evidence {
	f, err := os.Open(path)
	if err != nil {
		util.DebugLog("Tag read skipped for %s: %v", path, err)
		return &Evidence{}
	}
	defer f.Close()

	return ReadTagsFrom(f, path)
}

// ReadTagsFrom reads tags from an already opened file; name is only used for logging
func ReadTagsFrom(r io.ReadSeeker, name string) *Evidence {
	m, err := tag.ReadFrom(r)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			util.DebugLog("No embedded tags in %s", name)
		} else {
			util.DebugLog("Tag decode failed for %s: %v", name, err)
		}
		return &Evidence{}
	}

	util.DebugLog("Read %s tags (%s) from %s", m.Format(), m.FileType(), name)

	ev := &Evidence{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
	}

	// Some rippers only fill the album artist
	if ev.Artist == "" {
		ev.Artist = strings.TrimSpace(m.AlbumArtist())
	}

	return ev
}
