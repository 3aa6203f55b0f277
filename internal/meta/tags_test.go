package meta

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// id3Frame builds a v2.3 text frame with ISO-8859-1 encoding
func id3Frame(id, text string) []byte {
	var buf bytes.Buffer
	buf.WriteString(id)
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(text)+1))
	buf.Write(size)
	buf.Write([]byte{0, 0}) // flags
	buf.WriteByte(0)        // encoding
	buf.WriteString(text)
	return buf.Bytes()
}

// id3File builds a minimal ID3v2.3 tagged payload followed by fake audio bytes
func id3File(frames map[string]string) []byte {
	var body bytes.Buffer
	for _, id := range []string{"TIT2", "TPE1", "TALB", "TCON"} {
		if text, ok := frames[id]; ok {
			body.Write(id3Frame(id, text))
		}
	}

	n := body.Len()
	syncsafe := []byte{
		byte(n>>21) & 0x7f,
		byte(n>>14) & 0x7f,
		byte(n>>7) & 0x7f,
		byte(n) & 0x7f,
	}

	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{3, 0, 0})
	out.Write(syncsafe)
	out.Write(body.Bytes())
	out.Write(bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 64))
	return out.Bytes()
}

func TestReadTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tagged.mp3")

	data := id3File(map[string]string{
		"TIT2": "Kannalanae",
		"TPE1": "A.R.Rahman",
		"TALB": "Bombay",
		"TCON": "Soundtrack",
	})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ev := ReadTags(path)
	if ev == nil {
		t.Fatal("ReadTags returned nil")
	}
	if ev.Title != "Kannalanae" {
		t.Errorf("Title = %q, expected %q", ev.Title, "Kannalanae")
	}
	if ev.Artist != "A.R.Rahman" {
		t.Errorf("Artist = %q, expected %q", ev.Artist, "A.R.Rahman")
	}
	if ev.Album != "Bombay" {
		t.Errorf("Album = %q, expected %q", ev.Album, "Bombay")
	}
	if ev.Genre != "Soundtrack" {
		t.Errorf("Genre = %q, expected %q", ev.Genre, "Soundtrack")
	}
}

func TestReadTags_Untagged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.wav")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ev := ReadTags(path)
	if ev == nil || !ev.Empty() {
		t.Errorf("ReadTags(untagged) = %+v, expected empty evidence", ev)
	}
}

func TestReadTags_MissingFile(t *testing.T) {
	ev := ReadTags(filepath.Join(t.TempDir(), "missing.mp3"))
	if ev == nil || !ev.Empty() {
		t.Errorf("ReadTags(missing) = %+v, expected empty evidence", ev)
	}
}

func TestEvidence_Candidate(t *testing.T) {
	ev := Evidence{Title: "Kannalanae", Artist: "A.R.Rahman"}
	c := ev.Candidate(SourceFilename, 0.5)

	if c.Source != SourceFilename || c.Confidence != 0.5 {
		t.Errorf("Candidate = %+v, expected source Filename with confidence 0.5", c)
	}
	if c.Evidence() != ev {
		t.Errorf("Candidate.Evidence() = %+v, expected %+v", c.Evidence(), ev)
	}
	if !ev.Complete() {
		t.Error("Evidence with title and artist should be complete")
	}
}

func TestSource_Priority(t *testing.T) {
	if !(SourceCatalog.Priority() > SourceFileTag.Priority() && SourceFileTag.Priority() > SourceFilename.Priority()) {
		t.Error("expected Catalog > File Metadata > Filename")
	}
}
