package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nlqgate/nlqgate/internal/observability"
	"github.com/nlqgate/nlqgate/internal/storage"
)

const (
	DefaultArchiveQueue   = 256
	DefaultArchiveTimeout = 30 * time.Second
)

type ArchiverOptions struct {
	QueueSize int
	// Formats written per transcript. JSON is always written because
	// Load reads it back.
	Formats []string
	Timeout time.Duration
}

// Archiver uploads transcripts to the object store. Evicted sessions are
// queued with Enqueue and written by Run.
type Archiver struct {
	store   storage.ObjectStore
	queue   chan Session
	formats []string
	timeout time.Duration
	logger  *slog.Logger
}

func NewArchiver(store storage.ObjectStore, opts ArchiverOptions, logger *slog.Logger) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultArchiveQueue
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultArchiveTimeout
	}
	formats := []string{storage.FormatJSON}
	for _, format := range opts.Formats {
		if format == storage.FormatJSON {
			continue
		}
		if _, err := storage.TranscriptPath("format-check", format); err != nil {
			return nil, err
		}
		formats = append(formats, format)
	}
	return &Archiver{
		store:   store,
		queue:   make(chan Session, opts.QueueSize),
		formats: formats,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

// Enqueue schedules a transcript for upload without blocking. It reports
// false when the queue is full and the transcript was dropped.
func (a *Archiver) Enqueue(s Session) bool {
	select {
	case a.queue <- s:
		return true
	default:
		observability.IncrementSessionArchive("dropped")
		if a.logger != nil {
			a.logger.Warn("transcript archive queue full", slog.String("session_id", s.ID))
		}
		return false
	}
}

// Run uploads queued transcripts until ctx is done, then drains what is
// already queued before returning.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case s := <-a.queue:
			a.archiveQueued(ctx, s)
		}
	}
}

func (a *Archiver) drain() {
	for {
		select {
		case s := <-a.queue:
			a.archiveQueued(context.Background(), s)
		default:
			return
		}
	}
}

func (a *Archiver) archiveQueued(parent context.Context, s Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
	defer cancel()
	if _, err := a.Archive(ctx, s); err != nil && a.logger != nil {
		a.logger.ErrorContext(ctx, "transcript archive failed",
			slog.String("session_id", s.ID),
			slog.Any("error", err),
		)
	}
}

// Archive writes every configured format of the transcript and returns the
// stored objects.
func (a *Archiver) Archive(ctx context.Context, s Session) ([]storage.ObjectInfo, error) {
	infos := make([]storage.ObjectInfo, 0, len(a.formats))
	for _, format := range a.formats {
		key, err := storage.TranscriptPath(s.ID, format)
		if err != nil {
			observability.IncrementSessionArchive("failure")
			return infos, err
		}
		data, err := Encode(s, format)
		if err != nil {
			observability.IncrementSessionArchive("failure")
			return infos, err
		}
		info, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
			ContentType: ContentType(format),
			Metadata: map[string]string{
				"session-id": s.ID,
				"entries":    strconv.Itoa(len(s.Entries)),
			},
		})
		if err != nil {
			observability.IncrementSessionArchive("failure")
			return infos, fmt.Errorf("archive transcript %s: %w", s.ID, err)
		}
		infos = append(infos, info)
	}
	observability.IncrementSessionArchive("success")
	if a.logger != nil {
		a.logger.InfoContext(ctx, "transcript archived",
			slog.String("session_id", s.ID),
			slog.Int("entries", len(s.Entries)),
			slog.Int("objects", len(infos)),
		)
	}
	return infos, nil
}

// Load reads an archived transcript back.
func (a *Archiver) Load(ctx context.Context, id string) (Session, error) {
	key, err := storage.TranscriptPath(id, storage.FormatJSON)
	if err != nil {
		return Session{}, err
	}
	reader, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	defer func() { _ = reader.Close() }()
	return DecodeJSON(reader)
}

// Delete removes every archived format of a transcript.
func (a *Archiver) Delete(ctx context.Context, id string) error {
	for _, format := range a.formats {
		key, err := storage.TranscriptPath(id, format)
		if err != nil {
			return err
		}
		if err := a.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
