// Package gateway runs a chat message through classification, synthesis,
// validation, execution and answer formatting, and serves the surrounding
// schema, statistics and transcript operations.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nlqgate/nlqgate/internal/answer"
	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/nl2sql"
	"github.com/nlqgate/nlqgate/internal/observability"
	"github.com/nlqgate/nlqgate/internal/query"
	"github.com/nlqgate/nlqgate/internal/schema"
	"github.com/nlqgate/nlqgate/internal/session"
	"github.com/nlqgate/nlqgate/internal/sqlguard"
	"github.com/nlqgate/nlqgate/internal/storage"
)

const statsConcurrency = 4

type Executor interface {
	Execute(ctx context.Context, sqlText string) query.Result
	ExecuteStatement(ctx context.Context, stmt nl2sql.Statement) query.Result
}

type Validator interface {
	Validate(ctx context.Context, sqlText string) sqlguard.Verdict
}

// Archive is the transcript archive. It is optional.
type Archive interface {
	Archive(ctx context.Context, s session.Session) ([]storage.ObjectInfo, error)
	Load(ctx context.Context, id string) (session.Session, error)
	Delete(ctx context.Context, id string) error
}

type Dependencies struct {
	Translator   nl2sql.Translator
	Validator    Validator
	Executor     Executor
	Schema       schema.Provider
	Sessions     session.Store
	Archive      Archive
	Logger       *slog.Logger
	QueryTimeout time.Duration
	// StatsTables defaults to sqlguard.AllowedTables.
	StatsTables []string
}

type Service struct {
	translator   nl2sql.Translator
	validator    Validator
	executor     Executor
	schema       schema.Provider
	sessions     session.Store
	archive      Archive
	logger       *slog.Logger
	queryTimeout time.Duration
	statsTables  []string
}

func New(deps Dependencies) (*Service, error) {
	switch {
	case deps.Translator == nil:
		return nil, fmt.Errorf("translator is required")
	case deps.Validator == nil:
		return nil, fmt.Errorf("validator is required")
	case deps.Executor == nil:
		return nil, fmt.Errorf("executor is required")
	case deps.Schema == nil:
		return nil, fmt.Errorf("schema provider is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	}
	tables := deps.StatsTables
	if len(tables) == 0 {
		tables = sqlguard.AllowedTables
	}
	timeout := deps.QueryTimeout
	if timeout <= 0 {
		timeout = query.DefaultTimeout
	}
	return &Service{
		translator:   deps.Translator,
		validator:    deps.Validator,
		executor:     deps.Executor,
		schema:       deps.Schema,
		sessions:     deps.Sessions,
		archive:      deps.Archive,
		logger:       deps.Logger,
		queryTimeout: timeout,
		statsTables:  tables,
	}, nil
}

type Message struct {
	Text      string
	SessionID string
}

// Response is the answer to one chat message. Kind is empty on success.
type Response struct {
	Text         string            `json:"response"`
	GeneratedSQL string            `json:"generatedSql,omitempty"`
	QueryResult  []query.Row       `json:"queryResult,omitempty"`
	Successful   bool              `json:"isSuccessful"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	SessionID    string            `json:"sessionId"`
	Intent       nl2sql.IntentType `json:"intent,omitempty"`
	Kind         ErrorKind         `json:"-"`
}

// HandleMessage answers one chat message. It never panics and never
// returns backend detail for unexpected failures.
func (s *Service) HandleMessage(ctx context.Context, msg Message, identity auth.Identity) (resp Response) {
	text := strings.TrimSpace(msg.Text)
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logError(ctx, "chat message panicked",
				slog.Any("panic", recovered),
				slog.String("stack", string(debug.Stack())),
			)
			resp = Response{
				Text:         unexpectedText,
				ErrorMessage: "internal error",
				SessionID:    msg.SessionID,
				Kind:         KindUnexpected,
			}
		}
	}()

	if err := s.resumeArchived(ctx, msg.SessionID, identity.Subject); err != nil {
		return sessionFailure(err, msg.SessionID)
	}
	sess, err := s.sessions.Append(ctx, msg.SessionID, identity.Subject, session.Entry{Role: session.RoleUser, Text: text})
	if err != nil {
		return sessionFailure(err, msg.SessionID)
	}

	resp = s.answer(ctx, text, identity)
	resp.SessionID = sess.ID

	if _, err := s.sessions.Append(ctx, sess.ID, identity.Subject, session.Entry{
		Role: session.RoleAssistant,
		Text: resp.Text,
		SQL:  resp.GeneratedSQL,
	}); err != nil {
		s.logWarn(ctx, "append assistant entry failed", slog.String("session_id", sess.ID), slog.Any("error", err))
	}
	return resp
}

func sessionFailure(err error, sessionID string) Response {
	var gatewayErr *Error
	switch {
	case errors.Is(err, session.ErrSubjectMismatch):
		return Response{Text: err.Error(), ErrorMessage: err.Error(), SessionID: sessionID, Kind: KindForbidden}
	case errors.As(err, &gatewayErr):
		return Response{Text: gatewayErr.Message, ErrorMessage: gatewayErr.Message, SessionID: sessionID, Kind: gatewayErr.Kind}
	default:
		return Response{Text: err.Error(), ErrorMessage: err.Error(), SessionID: sessionID, Kind: KindInvalidInput}
	}
}

func (s *Service) answer(ctx context.Context, text string, identity auth.Identity) Response {
	translated, err := s.translator.Translate(ctx, nl2sql.Request{Subject: identity.Subject, NaturalLanguage: text})
	if err != nil {
		s.logError(ctx, "translate message failed", slog.Any("error", err))
		return Response{Text: unexpectedText, ErrorMessage: "internal error", Kind: KindUnexpected}
	}
	intent := translated.Intent
	observability.IncrementIntent(string(intent.Type))

	switch intent.Type {
	case nl2sql.IntentGreeting:
		return Response{Text: greetingText, Successful: true, Intent: intent.Type}
	case nl2sql.IntentHelp:
		return Response{Text: helpText, Successful: true, Intent: intent.Type}
	case nl2sql.IntentSchemaInquiry:
		description, err := s.schema.Describe(ctx)
		if err != nil {
			s.logError(ctx, "describe schema failed", slog.Any("error", err))
			return Response{Text: schemaFailedText, ErrorMessage: "schema unavailable", Intent: intent.Type, Kind: KindUnavailable}
		}
		return Response{Text: schema.Summary(description), Successful: true, Intent: intent.Type}
	case nl2sql.IntentDataQuery:
		return s.answerDataQuery(ctx, translated)
	default:
		return Response{Text: unrecognizedText, Intent: intent.Type, Kind: KindUnrecognized}
	}
}

func (s *Service) answerDataQuery(ctx context.Context, translated nl2sql.Result) Response {
	intent := translated.Intent
	if !translated.Synthesized || translated.Statement.Empty() {
		return Response{Text: clarificationText, Intent: intent.Type, Kind: KindSynthesisFailed}
	}

	result := s.executor.ExecuteStatement(ctx, translated.Statement)
	resp := Response{GeneratedSQL: result.ExecutedSQL, Intent: intent.Type}
	switch {
	case result.Rejected():
		resp.Text = rejectedText + result.Verdict.Reason
		resp.ErrorMessage = result.Error
		resp.Kind = KindValidationRejected
	case !result.Successful:
		resp.Text = executionFailedText + result.Error
		resp.ErrorMessage = result.Error
		resp.Kind = KindExecutionFailed
	default:
		resp.Text = answer.Format(intent, result)
		resp.QueryResult = result.Rows
		resp.Successful = true
	}
	return resp
}

// ExecuteAdHoc runs caller-authored SQL through the same validation and
// sandbox as synthesized statements, and writes an audit log entry.
func (s *Service) ExecuteAdHoc(ctx context.Context, sqlText string, identity auth.Identity) query.Result {
	result := s.executor.Execute(ctx, sqlText)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "ad-hoc query executed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("subject", identity.Subject),
			slog.String("sql", sqlText),
			slog.Bool("successful", result.Successful),
			slog.Int("rows", result.RowCount),
		)
	}
	return result
}

type ValidationResult struct {
	Valid   bool           `json:"isValid"`
	Query   string         `json:"query"`
	Message string         `json:"message"`
	Check   sqlguard.Check `json:"failedCheck,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// ValidateOnly runs every validation check without executing the query.
func (s *Service) ValidateOnly(ctx context.Context, sqlText string) ValidationResult {
	verdict := s.validator.Validate(ctx, sqlText)
	if !verdict.Admitted {
		return ValidationResult{
			Query:   sqlText,
			Message: "Query validation failed",
			Check:   verdict.Check,
			Reason:  verdict.Reason,
		}
	}
	return ValidationResult{Valid: true, Query: sqlText, Message: "Query is valid"}
}

// Stats counts the rows of every stats table concurrently. A table whose
// count fails reports "Error" instead of a number.
func (s *Service) Stats(ctx context.Context) map[string]any {
	stats := make(map[string]any, len(s.statsTables))
	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(statsConcurrency)
	for _, table := range s.statsTables {
		group.Go(func() error {
			var value any = "Error"
			result := s.executor.Execute(ctx, "SELECT COUNT(*) FROM "+table)
			if count, ok := result.Scalar(); result.Successful && ok {
				value = count
			} else {
				s.logWarn(ctx, "table count failed", slog.String("table", table), slog.String("error", result.Error))
			}
			mu.Lock()
			stats[table+"Count"] = value
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return stats
}

func (s *Service) Describe(ctx context.Context) (schema.Description, error) {
	description, err := s.schema.Describe(ctx)
	if err != nil {
		return schema.Description{}, newError(KindUnavailable, "Error retrieving database schema", err)
	}
	return description, nil
}

// SchemaDescription renders the schema as prompt text.
func (s *Service) SchemaDescription(ctx context.Context) (string, error) {
	description, err := s.Describe(ctx)
	if err != nil {
		return "", err
	}
	return schema.RenderForAI(description), nil
}

func (s *Service) Help() Help {
	return HelpInfo(s.queryTimeout)
}

func (s *Service) logError(ctx context.Context, msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	attrs = append([]any{slog.String("trace_id", observability.TraceIDFromContext(ctx))}, attrs...)
	s.logger.ErrorContext(ctx, msg, attrs...)
}

func (s *Service) logWarn(ctx context.Context, msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	attrs = append([]any{slog.String("trace_id", observability.TraceIDFromContext(ctx))}, attrs...)
	s.logger.WarnContext(ctx, msg, attrs...)
}
