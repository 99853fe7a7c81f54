package api

import (
	"context"

	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/gateway"
	"github.com/nlqgate/nlqgate/internal/query"
	"github.com/nlqgate/nlqgate/internal/schema"
	"github.com/nlqgate/nlqgate/internal/session"
	"github.com/nlqgate/nlqgate/internal/storage"
)

type fakeGateway struct {
	response    gateway.Response
	result      query.Result
	validation  gateway.ValidationResult
	description schema.Description
	err         error
	stats       map[string]any
	transcript  session.Session
	export      []byte

	lastIdentity auth.Identity
	lastMessage  gateway.Message
	lastSQL      string
	lastFormat   string
	lastPurge    bool
}

func (f *fakeGateway) HandleMessage(_ context.Context, msg gateway.Message, identity auth.Identity) gateway.Response {
	f.lastMessage = msg
	f.lastIdentity = identity
	return f.response
}

func (f *fakeGateway) ExecuteAdHoc(_ context.Context, sqlText string, identity auth.Identity) query.Result {
	f.lastSQL = sqlText
	f.lastIdentity = identity
	return f.result
}

func (f *fakeGateway) ValidateOnly(_ context.Context, sqlText string) gateway.ValidationResult {
	f.lastSQL = sqlText
	return f.validation
}

func (f *fakeGateway) Describe(context.Context) (schema.Description, error) {
	return f.description, f.err
}

func (f *fakeGateway) SchemaDescription(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return schema.RenderForAI(f.description), nil
}

func (f *fakeGateway) Stats(context.Context) map[string]any { return f.stats }

func (f *fakeGateway) Help() gateway.Help { return gateway.HelpInfo(query.DefaultTimeout) }

func (f *fakeGateway) Transcript(_ context.Context, _ string, identity auth.Identity) (session.Session, error) {
	f.lastIdentity = identity
	return f.transcript, f.err
}

func (f *fakeGateway) ExportTranscript(_ context.Context, _ string, format string, identity auth.Identity) ([]byte, string, error) {
	f.lastFormat = format
	f.lastIdentity = identity
	if f.err != nil {
		return nil, "", f.err
	}
	return f.export, session.ContentType(format), nil
}

func (f *fakeGateway) ArchiveTranscript(_ context.Context, id string, identity auth.Identity) ([]storage.ObjectInfo, error) {
	f.lastIdentity = identity
	if f.err != nil {
		return nil, f.err
	}
	key, err := storage.TranscriptPath(id, storage.FormatJSON)
	if err != nil {
		return nil, err
	}
	return []storage.ObjectInfo{{Key: key}}, nil
}

func (f *fakeGateway) EndSession(_ context.Context, _ string, purge bool, identity auth.Identity) error {
	f.lastPurge = purge
	f.lastIdentity = identity
	return f.err
}
