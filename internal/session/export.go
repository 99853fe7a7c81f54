package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/nlqgate/nlqgate/internal/storage"
)

// transcriptRow is one entry of a transcript in columnar form.
type transcriptRow struct {
	SessionID string `parquet:"session_id"`
	Subject   string `parquet:"subject"`
	Sequence  int32  `parquet:"sequence"`
	Role      string `parquet:"role"`
	Text      string `parquet:"text"`
	SQL       string `parquet:"sql"`
	AtUnixMs  int64  `parquet:"at_unix_ms"`
}

// ContentType returns the media type a transcript format is served with.
func ContentType(format string) string {
	if strings.EqualFold(format, storage.FormatParquet) {
		return "application/vnd.apache.parquet"
	}
	return "application/json"
}

// Encode renders a transcript as json or parquet.
func Encode(s Session, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", storage.FormatJSON:
		return encodeJSON(s)
	case storage.FormatParquet:
		return encodeParquet(s)
	default:
		return nil, fmt.Errorf("unsupported transcript format %q", format)
	}
}

// Export writes the encoded transcript to w.
func Export(w io.Writer, s Session, format string) error {
	data, err := Encode(s, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func encodeJSON(s Session) ([]byte, error) {
	if s.Entries == nil {
		s.Entries = []Entry{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript json: %w", err)
	}
	return data, nil
}

// DecodeJSON reads a transcript produced by Encode with the json format.
func DecodeJSON(r io.Reader) (Session, error) {
	var s Session
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Session{}, fmt.Errorf("decode transcript json: %w", err)
	}
	if s.ID == "" {
		return Session{}, fmt.Errorf("decode transcript json: missing id")
	}
	return s, nil
}

func encodeParquet(s Session) ([]byte, error) {
	rows := make([]transcriptRow, 0, len(s.Entries))
	for i, entry := range s.Entries {
		rows = append(rows, transcriptRow{
			SessionID: s.ID,
			Subject:   s.Subject,
			Sequence:  int32(i),
			Role:      string(entry.Role),
			Text:      entry.Text,
			SQL:       entry.SQL,
			AtUnixMs:  entry.At.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[transcriptRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
