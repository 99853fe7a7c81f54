package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/session"
	"github.com/nlqgate/nlqgate/internal/storage"
)

// Transcript returns a live session, falling back to the archive once the
// session has left memory. Callers see only their own sessions unless they
// hold the query admin role.
func (s *Service) Transcript(ctx context.Context, id string, identity auth.Identity) (session.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) && s.archive != nil {
		sess, err = s.archive.Load(ctx, id)
	}
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Session{}, newError(KindNotFound, "session not found", err)
		}
		return session.Session{}, newError(KindUnavailable, "session could not be loaded", err)
	}
	if !canRead(sess, identity) {
		return session.Session{}, newError(KindForbidden, "session belongs to another subject", nil)
	}
	return sess, nil
}

// resumeArchived moves an archived transcript back into the live store when
// a message names a session that has left memory. Only the archived owner
// may resume it.
func (s *Service) resumeArchived(ctx context.Context, id, subject string) error {
	id = strings.TrimSpace(id)
	if id == "" || s.archive == nil {
		return nil
	}
	if err := storage.ValidateComponent(id, "session id"); err != nil {
		return err
	}
	if _, err := s.sessions.Get(ctx, id); !errors.Is(err, session.ErrNotFound) {
		return nil
	}
	archived, err := s.archive.Load(ctx, id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil
	case err != nil:
		s.logError(ctx, "load archived transcript failed", slog.String("session_id", id), slog.Any("error", err))
		return newError(KindUnavailable, "session could not be loaded", err)
	case archived.Subject != subject:
		return fmt.Errorf("%w: %s", session.ErrSubjectMismatch, id)
	}
	_, err = s.sessions.Append(ctx, id, subject, archived.Entries...)
	return err
}

// ExportTranscript encodes a transcript as json or parquet.
func (s *Service) ExportTranscript(ctx context.Context, id, format string, identity auth.Identity) ([]byte, string, error) {
	sess, err := s.Transcript(ctx, id, identity)
	if err != nil {
		return nil, "", err
	}
	data, err := session.Encode(sess, format)
	if err != nil {
		return nil, "", newError(KindInvalidInput, err.Error(), err)
	}
	return data, session.ContentType(format), nil
}

// ArchiveTranscript uploads a live session's transcript immediately.
func (s *Service) ArchiveTranscript(ctx context.Context, id string, identity auth.Identity) ([]storage.ObjectInfo, error) {
	if s.archive == nil {
		return nil, newError(KindUnavailable, "transcript archive is not configured", nil)
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, newError(KindNotFound, "session not found", err)
	}
	if !canRead(sess, identity) {
		return nil, newError(KindForbidden, "session belongs to another subject", nil)
	}
	infos, err := s.archive.Archive(ctx, sess)
	if err != nil {
		s.logError(ctx, "archive transcript failed", slog.String("session_id", id), slog.Any("error", err))
		return nil, newError(KindUnavailable, "transcript could not be archived", err)
	}
	return infos, nil
}

// EndSession removes a live session and, when purge is set, its archived
// copies. Evicting the live session hands it to the archive queue when one
// is wired as the store's eviction sink.
func (s *Service) EndSession(ctx context.Context, id string, purge bool, identity auth.Identity) error {
	if _, err := s.Transcript(ctx, id, identity); err != nil {
		return err
	}
	if err := s.sessions.Expire(ctx, id); err != nil && !errors.Is(err, session.ErrNotFound) {
		return newError(KindUnexpected, "session could not be ended", err)
	}
	if purge && s.archive != nil {
		if err := s.archive.Delete(ctx, id); err != nil {
			return newError(KindUnavailable, "archived transcript could not be deleted", err)
		}
	}
	return nil
}

func canRead(sess session.Session, identity auth.Identity) bool {
	return sess.Subject == identity.Subject || identity.HasRole(auth.RoleQueryAdmin)
}
