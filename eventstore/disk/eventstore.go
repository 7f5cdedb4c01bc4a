// Package disk provides a file-backed EventStore: one JSON document per
// event under a directory per stream, plus an "all" directory of symlinks in
// global append order. Watch tails the global log via fsnotify so downstream
// consumers can follow appends from other processes.
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/invopay/billing"
)

var _ billing.EventStore = (*FileStore)(nil)

type FileStore struct {
	baseDir   string
	mu        sync.Mutex
	globalSeq uint64
}

// NewFileStore opens (creating if needed) a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "all"), 0o755); err != nil {
		return nil, err
	}

	store := &FileStore{baseDir: dir}

	// Resume the global sequence from what is already on disk.
	entries, err := os.ReadDir(filepath.Join(dir, "all"))
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if seq, ok := sequenceFromName(entry.Name()); ok && seq > store.globalSeq {
			store.globalSeq = seq
		}
	}

	return store, nil
}

func (f *FileStore) streamDir(id string) string {
	return filepath.Join(f.baseDir, id)
}

func (f *FileStore) Save(ctx context.Context, events []billing.Envelope, revision billing.StreamState) (billing.AppendResult, error) {
	if len(events) == 0 {
		return billing.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	for i, env := range events {
		if env.StreamID != streamID {
			return billing.AppendResult{}, fmt.Errorf(
				"save events to stream %q: %w: event %d has different stream ID %q",
				streamID, billing.ErrInvalidEventBatch, i, env.StreamID,
			)
		}
	}

	sdir := f.streamDir(streamID)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(sdir, 0o755); err != nil {
		return billing.AppendResult{}, err
	}

	entries, err := os.ReadDir(sdir)
	if err != nil {
		return billing.AppendResult{}, err
	}
	currentVersion := uint64(len(entries))

	switch rev := revision.(type) {
	case billing.Any:
		// No concurrency check.
	case billing.NoStream:
		if currentVersion != 0 {
			return billing.AppendResult{Successful: false},
				fmt.Errorf("stream %q: already exists: %w", streamID, billing.ErrStreamExists)
		}
	case billing.StreamExists:
		if currentVersion == 0 {
			return billing.AppendResult{Successful: false},
				fmt.Errorf("stream %q: should exist: %w", streamID, billing.ErrStreamNotFound)
		}
	case billing.Revision:
		if currentVersion != uint64(rev) {
			return billing.AppendResult{}, &billing.StreamRevisionConflictError{
				Stream:           streamID,
				ExpectedRevision: rev,
				ActualRevision:   billing.Revision(currentVersion),
			}
		}
	default:
		return billing.AppendResult{Successful: false},
			fmt.Errorf("unsupported revision type for stream %q: %w", streamID, billing.ErrInvalidRevision)
	}

	for i := range events {
		select {
		case <-ctx.Done():
			return billing.AppendResult{Successful: false}, ctx.Err()
		default:
		}

		f.globalSeq++
		events[i].GlobalVersion = f.globalSeq

		name := fmt.Sprintf("%010d-%s.json", events[i].Version, events[i].Event.EventType())
		path := filepath.Join(sdir, name)

		data, err := json.Marshal(storedEventFromEnvelope(&events[i]))
		if err != nil {
			return billing.AppendResult{}, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return billing.AppendResult{}, err
		}

		// Symlink into all/ under the global position.
		all := filepath.Join(f.baseDir, "all", fmt.Sprintf("%010d-%s.json", events[i].GlobalVersion, events[i].Event.EventType()))
		rel, err := filepath.Rel(filepath.Join(f.baseDir, "all"), path)
		if err != nil {
			return billing.AppendResult{}, err
		}
		if err := os.Symlink(rel, all); err != nil {
			return billing.AppendResult{}, err
		}

		currentVersion++
	}

	return billing.AppendResult{
		Successful:          true,
		StreamID:            streamID,
		NextExpectedVersion: currentVersion,
	}, nil
}

func (f *FileStore) LoadStream(ctx context.Context, id string) (*billing.Iterator[*billing.Envelope], error) {
	dir := f.streamDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("load stream %q: %w", id, billing.ErrStreamNotFound)
	}
	return loadFromDir(dir, 0)
}

func (f *FileStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	dir := f.streamDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("load stream %q: %w", id, billing.ErrStreamNotFound)
	}
	return loadFromDir(dir, version)
}

func (f *FileStore) LoadFromAll(ctx context.Context, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	return loadFromDir(filepath.Join(f.baseDir, "all"), version)
}

// Watch tails the global log: it yields envelopes appended after the watch
// started, decoded as they hit the filesystem, until ctx is done. Appends
// from other processes sharing the directory are observed too.
func (f *FileStore) Watch(ctx context.Context) (<-chan *billing.Envelope, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Join(f.baseDir, "all")); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan *billing.Envelope, 64)
	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) {
					continue
				}
				envelope, err := readStoredEvent(ev.Name)
				if err != nil {
					continue
				}
				select {
				case out <- envelope:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}

func (f *FileStore) Close() error {
	return nil
}

func loadFromDir(dir string, from uint64) (*billing.Iterator[*billing.Envelope], error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return billing.NewIteratorFunc(func(ctx context.Context) (*billing.Envelope, error) {
				return nil, io.EOF
			}), nil
		}
		return nil, err
	}

	idx := 0
	return billing.NewIteratorFunc(func(ctx context.Context) (*billing.Envelope, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for idx < len(files) {
			fi := files[idx]
			idx++
			if fi.IsDir() {
				continue
			}
			seq, ok := sequenceFromName(fi.Name())
			if !ok || seq <= from {
				continue
			}
			return readStoredEvent(filepath.Join(dir, fi.Name()))
		}
		return nil, io.EOF
	}), nil
}

func sequenceFromName(name string) (uint64, bool) {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) < 2 {
		return 0, false
	}
	seq, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func readStoredEvent(path string) (*billing.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, billing.WrapEventStoreError(err)
	}

	var stored storedEvent
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, billing.WrapEventStoreError(fmt.Errorf("cannot decode %q: %w", path, err))
	}

	event, err := decodeEvent(stored.EventType, stored.Data)
	if err != nil {
		return nil, billing.WrapEventStoreError(err)
	}

	return &billing.Envelope{
		EventID:       stored.EventID,
		StreamID:      stored.StreamID,
		CommandID:     stored.CommandID,
		Event:         event,
		Metadata:      stored.Metadata,
		Version:       stored.Version,
		GlobalVersion: stored.GlobalVersion,
		OccurredAt:    stored.OccurredAt,
	}, nil
}

// decodeEvent turns a stored payload back into its registered Event type.
// Registered factories return payload values, so unmarshal through a pointer
// of the concrete type.
func decodeEvent(name string, data json.RawMessage) (billing.Event, error) {
	proto, err := billing.NewEventByName(name)
	if err != nil {
		return nil, fmt.Errorf("cannot create event %q: %w", name, err)
	}

	ptr := reflect.New(reflect.TypeOf(proto))
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("cannot unmarshal event %q: %w", name, err)
	}
	return ptr.Elem().Interface().(billing.Event), nil
}

type storedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	StreamID      string          `json:"stream_id"`
	CommandID     uuid.UUID       `json:"command_id"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Version       uint64          `json:"version"`
	GlobalVersion uint64          `json:"global_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func storedEventFromEnvelope(env *billing.Envelope) storedEvent {
	data, _ := json.Marshal(env.Event)
	return storedEvent{
		EventID:       env.EventID,
		StreamID:      env.StreamID,
		CommandID:     env.CommandID,
		Metadata:      env.Metadata,
		EventType:     env.Event.EventType(),
		Data:          data,
		Version:       env.Version,
		GlobalVersion: env.GlobalVersion,
		OccurredAt:    env.OccurredAt,
	}
}
