// Package session keeps per-conversation transcripts for the chat surface.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrSubjectMismatch = errors.New("session belongs to another subject")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	SQL  string    `json:"sql,omitempty"`
	At   time.Time `json:"at"`
}

// Session is a snapshot. Stores never mutate a Session after handing it
// out, so callers may keep and read it freely.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject,omitempty"`
	Entries   []Entry   `json:"entries"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store holds live sessions. Append creates the session when the id is
// unknown and generates an id when it is empty. An id whose session was
// evicted may only be re-created by the subject that owned it.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Append(ctx context.Context, id, subject string, entries ...Entry) (Session, error)
	Expire(ctx context.Context, id string) error
	Len() int
}
