// Package store persists track and playlist metadata as one JSON document
// in the object bucket.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/util"
)

const (
	// DocumentKey is where the whole metadata document lives
	DocumentKey = "metadata/all.json"
	// MetadataPrefix holds the document and legacy per-item objects
	MetadataPrefix = "metadata/"

	legacySongPrefix     = "metadata/songs/"
	legacyPlaylistPrefix = "metadata/playlists/"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store reads and writes the metadata document. Writers in one process are
// serialised by a mutex; writers across processes are reconciled with
// conditional puts and retried on conflict.
type Store struct {
	bucket objstore.Bucket
	mu     sync.Mutex
	retry  *util.RetryConfig
}

// New creates a store over bucket
func New(bucket objstore.Bucket) *Store {
	return &Store{
		bucket: bucket,
		retry: util.StorageRetryConfig(func(err error) bool {
			return errors.Is(err, objstore.ErrPrecondition)
		}),
	}
}

// Load reads the document. A missing or unparseable document yields an
// empty one. version is the ETag to guard the next write with, empty when
// the document does not exist yet.
func (s *Store) Load(ctx context.Context) (doc *Document, version string, err error) {
	obj, err := s.bucket.Get(ctx, DocumentKey)
	if errors.Is(err, util.ErrNotFound) {
		return NewDocument(), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load metadata document: %w", err)
	}

	doc = &Document{}
	if err := json.Unmarshal(obj.Body, doc); err != nil {
		util.WarnLog("Metadata document is unreadable, starting from empty: %v", err)
		doc = NewDocument()
	}
	doc.ensureMaps()

	return doc, obj.ETag, nil
}

// update runs a read-modify-write cycle on the document. mutate returns the
// legacy object key superseded by the change, if any.
func (s *Store) update(ctx context.Context, mutate func(*Document) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var legacyKey string
	err := util.Retry(ctx, s.retry, func() error {
		doc, version, err := s.Load(ctx)
		if err != nil {
			return err
		}

		legacyKey, err = mutate(doc)
		if err != nil {
			return err
		}

		data, err := encode(doc)
		if err != nil {
			return err
		}

		opts := objstore.PutOptions{ContentType: "application/json"}
		if s.bucket.SupportsConditional() {
			if version == "" {
				opts.IfNoneMatch = "*"
			} else {
				opts.IfMatch = version
			}
		}

		return s.bucket.Put(ctx, DocumentKey, bytes.NewReader(data), int64(len(data)), opts)
	}, "metadata document write")
	if err != nil {
		return err
	}

	if legacyKey != "" {
		s.pruneLegacy(ctx, legacyKey)
	}
	return nil
}

// pruneLegacy removes a superseded per-item object; failures are only logged
func (s *Store) pruneLegacy(ctx context.Context, key string) {
	if err := s.bucket.Delete(ctx, key); err != nil && !errors.Is(err, util.ErrNotFound) {
		util.DebugLog("Legacy metadata %s not removed: %v", key, err)
	}
}

func encode(doc *Document) ([]byte, error) {
	doc.ensureMaps()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata document: %w", err)
	}
	return data, nil
}

// MergeSong upserts a song record field by field
func (s *Store) MergeSong(ctx context.Context, key string, update TrackMetadata) error {
	if key == "" {
		return fmt.Errorf("%w: fileName is required", util.ErrValidation)
	}
	return s.update(ctx, func(doc *Document) (string, error) {
		current, ok := doc.Songs[key]
		if !ok {
			// the legacy object is about to be pruned, merge onto it
			legacy, _, err := s.LegacySong(ctx, key)
			if err != nil {
				return "", err
			}
			current = legacy
		}
		doc.Songs[key] = current.Merge(update)
		return legacySongKey(key), nil
	})
}

// ReplaceSong stores record as the complete song entry
func (s *Store) ReplaceSong(ctx context.Context, key string, record TrackMetadata) error {
	if key == "" {
		return fmt.Errorf("%w: fileName is required", util.ErrValidation)
	}
	return s.update(ctx, func(doc *Document) (string, error) {
		doc.Songs[key] = record
		return legacySongKey(key), nil
	})
}

// DeleteSong prunes a song entry together with its legacy object
func (s *Store) DeleteSong(ctx context.Context, key string) error {
	return s.update(ctx, func(doc *Document) (string, error) {
		delete(doc.Songs, key)
		return legacySongKey(key), nil
	})
}

// MergePlaylist upserts a playlist record field by field
func (s *Store) MergePlaylist(ctx context.Context, update PlaylistMetadata) error {
	if update.ID == "" {
		return fmt.Errorf("%w: playlist id is required", util.ErrValidation)
	}
	return s.update(ctx, func(doc *Document) (string, error) {
		current, ok := doc.Playlists[update.ID]
		if !ok {
			if _, err := s.readLegacy(ctx, legacyPlaylistKey(update.ID), &current); err != nil {
				return "", err
			}
		}
		doc.Playlists[update.ID] = current.Merge(update)
		return legacyPlaylistKey(update.ID), nil
	})
}

// Song returns a song record, falling back to its legacy object.
// ok is false when neither exists.
func (s *Store) Song(ctx context.Context, key string) (TrackMetadata, bool, error) {
	doc, _, err := s.Load(ctx)
	if err != nil {
		return TrackMetadata{}, false, err
	}
	if song, ok := doc.Songs[key]; ok {
		return song, true, nil
	}
	return s.LegacySong(ctx, key)
}

// LegacySong reads only the per-file record older deployments wrote
func (s *Store) LegacySong(ctx context.Context, key string) (TrackMetadata, bool, error) {
	var legacy TrackMetadata
	ok, err := s.readLegacy(ctx, legacySongKey(key), &legacy)
	return legacy, ok, err
}

// Playlist returns a playlist record, falling back to its legacy object
func (s *Store) Playlist(ctx context.Context, id string) (PlaylistMetadata, bool, error) {
	doc, _, err := s.Load(ctx)
	if err != nil {
		return PlaylistMetadata{}, false, err
	}
	if p, ok := doc.Playlists[id]; ok {
		return p, true, nil
	}

	var legacy PlaylistMetadata
	ok, err := s.readLegacy(ctx, legacyPlaylistKey(id), &legacy)
	if ok && legacy.ID == "" {
		legacy.ID = id
	}
	return legacy, ok, err
}

func (s *Store) readLegacy(ctx context.Context, key string, v interface{}) (bool, error) {
	obj, err := s.bucket.Get(ctx, key)
	if errors.Is(err, util.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(obj.Body, v); err != nil {
		util.WarnLog("Legacy metadata %s is unreadable: %v", key, err)
		return false, nil
	}
	return true, nil
}

// StoreMetadata stores a JSON payload addressed the way per-item metadata
// objects used to be: "playlists/<id>.json" updates a playlist, any other
// key is a song file name.
func (s *Store) StoreMetadata(ctx context.Context, key string, payload []byte) error {
	if id, ok := ParsePlaylistKey(key); ok {
		var p PlaylistMetadata
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("%w: playlist metadata: %v", util.ErrValidation, err)
		}
		if p.ID == "" {
			p.ID = id
		}
		return s.MergePlaylist(ctx, p)
	}

	var t TrackMetadata
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("%w: track metadata: %v", util.ErrValidation, err)
	}
	return s.MergeSong(ctx, key, t)
}

// ParsePlaylistKey recognises "playlists/<id>.json", optionally under
// the metadata prefix, and returns the id
func ParsePlaylistKey(key string) (string, bool) {
	key = strings.TrimPrefix(key, MetadataPrefix)
	if !strings.HasPrefix(key, "playlists/") || !strings.HasSuffix(key, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, "playlists/"), ".json")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func legacySongKey(key string) string {
	return legacySongPrefix + key + ".json"
}

func legacyPlaylistKey(id string) string {
	return legacyPlaylistPrefix + id + ".json"
}
