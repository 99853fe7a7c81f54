package nlqctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nlqgate/nlqgate/internal/answer"
	"github.com/nlqgate/nlqgate/internal/gateway"
	"github.com/nlqgate/nlqgate/internal/query"
	"github.com/nlqgate/nlqgate/internal/schema"
	"github.com/nlqgate/nlqgate/internal/storage"
)

func newAskCommand(flags *globalFlags) *cobra.Command {
	var (
		sessionID string
		showRows  bool
		maxRows   int
	)
	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send a chat message and print the answer",
		Args:  minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"message": strings.Join(args, " ")}
			if sessionID != "" {
				payload["sessionId"] = sessionID
			}
			raw, err := flags.newClient().call(cmd.Context(), http.MethodPost, "/v1/chat/messages", payload)
			var apiErr *apiError
			if err != nil && !(errors.As(err, &apiErr) && isChatResponse(apiErr.Body)) {
				return err
			}

			var response gateway.Response
			if decodeErr := json.Unmarshal(raw, &response); decodeErr != nil {
				return fmt.Errorf("decode chat response: %w", decodeErr)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, response.Text)
			if response.GeneratedSQL != "" {
				_, _ = fmt.Fprintf(out, "\nSQL: %s\n", response.GeneratedSQL)
			}
			if showRows && len(response.QueryResult) > 0 {
				_, _ = fmt.Fprintln(out)
				result := query.Result{Successful: true, Rows: response.QueryResult, RowCount: len(response.QueryResult)}
				if err := answer.RenderTable(out, result, maxRows); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(out, "\nsession: %s\n", response.SessionID)
			if !response.Successful {
				return errors.New(firstNonEmpty(response.ErrorMessage, "request was not answered"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().BoolVar(&showRows, "rows", false, "print the query rows as a table")
	cmd.Flags().IntVar(&maxRows, "max-rows", answer.DefaultDisplayRows, "maximum rows to print")
	return cmd
}

func isChatResponse(raw []byte) bool {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return false
	}
	_, ok := fields["response"]
	return ok
}

func newQueryCommand(flags *globalFlags) *cobra.Command {
	var (
		description string
		maxRows     int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run read-only SQL through the gateway's validator (query_admin)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"sqlQuery": args[0]}
			if description != "" {
				payload["description"] = description
			}
			raw, err := flags.newClient().call(cmd.Context(), http.MethodPost, "/v1/chat/query", payload)
			var apiErr *apiError
			if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && apiErr.Code == "") {
				return err
			}
			if asJSON {
				if printErr := printJSON(cmd.OutOrStdout(), raw); printErr != nil {
					return printErr
				}
				return err
			}

			var result query.Result
			if decodeErr := json.Unmarshal(raw, &result); decodeErr != nil {
				return fmt.Errorf("decode query result: %w", decodeErr)
			}
			if renderErr := answer.RenderTable(cmd.OutOrStdout(), result, maxRows); renderErr != nil {
				return renderErr
			}
			if !result.Successful {
				return errors.New("query failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "note recorded with the query")
	cmd.Flags().IntVar(&maxRows, "max-rows", answer.DefaultDisplayRows, "maximum rows to print")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON result")
	return cmd
}

func newValidateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <sql>",
		Short: "Check SQL against every validation rule without running it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := flags.newClient().call(cmd.Context(), http.MethodPost, "/v1/chat/validate", map[string]string{"sqlQuery": args[0]})
			if err != nil {
				return err
			}
			var result gateway.ValidationResult
			if err := json.Unmarshal(raw, &result); err != nil {
				return fmt.Errorf("decode validation result: %w", err)
			}
			out := cmd.OutOrStdout()
			if result.Valid {
				_, _ = fmt.Fprintln(out, result.Message)
				return nil
			}
			_, _ = fmt.Fprintf(out, "%s: %s (%s)\n", result.Message, result.Reason, result.Check)
			return errors.New("query is not valid")
		},
	}
}

func newSchemaCommand(flags *globalFlags) *cobra.Command {
	var asText bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the database schema",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := flags.newClient()
			if asText {
				raw, err := c.call(cmd.Context(), http.MethodGet, "/v1/chat/schema/description", nil)
				if err != nil {
					return err
				}
				var body struct {
					Description string `json:"description"`
				}
				if err := json.Unmarshal(raw, &body); err != nil {
					return fmt.Errorf("decode schema description: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), body.Description)
				return err
			}

			raw, err := c.call(cmd.Context(), http.MethodGet, "/v1/chat/schema", nil)
			if err != nil {
				return err
			}
			var description schema.Description
			if err := json.Unmarshal(raw, &description); err != nil {
				return fmt.Errorf("decode schema: %w", err)
			}
			return renderSchema(cmd.OutOrStdout(), description)
		},
	}
	cmd.Flags().BoolVar(&asText, "text", false, "print the prompt-ready text rendering")
	return cmd
}

func renderSchema(w io.Writer, description schema.Description) error {
	for _, tbl := range description.Tables {
		if _, err := fmt.Fprintf(w, "%s: %s\n", tbl.Name, tbl.Description); err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Column", "Type", "Null", "Key"})
		for _, column := range tbl.Columns {
			key := ""
			switch {
			case column.PrimaryKey:
				key = "PK"
			case column.ForeignKey:
				key = "FK " + column.ReferencedTable + "." + column.ReferencedColumn
			}
			t.AppendRow(table.Row{column.Name, column.DataType, column.Nullable, key})
		}
		t.Render()
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func newStatsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts per table",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := flags.newClient().call(cmd.Context(), http.MethodGet, "/v1/chat/stats", nil)
			if err != nil {
				return err
			}
			var stats map[string]any
			if err := json.Unmarshal(raw, &stats); err != nil {
				return fmt.Errorf("decode stats: %w", err)
			}
			keys := make([]string, 0, len(stats))
			for key := range stats {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Table", "Rows"})
			for _, key := range keys {
				value := fmt.Sprint(stats[key])
				if n, ok := stats[key].(float64); ok {
					value = humanize.Comma(int64(n))
				}
				t.AppendRow(table.Row{strings.TrimSuffix(key, "Count"), value})
			}
			t.Render()
			return nil
		},
	}
}

func newSessionCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect, export, archive and end conversation sessions",
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session transcript",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := flags.newClient().call(cmd.Context(), http.MethodGet, sessionPath(args[0]), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}

	var (
		format string
		output string
	)
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a transcript as json or parquet",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.ValidateComponent(args[0], "session id"); err != nil {
				return &usageError{err: err}
			}
			path := sessionPath(args[0]) + "/export?format=" + url.QueryEscape(format)
			raw, err := flags.newClient().call(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", output, humanize.Bytes(uint64(len(raw))))
			return nil
		},
	}
	export.Flags().StringVar(&format, "format", storage.FormatJSON, "json or parquet")
	export.Flags().StringVarP(&output, "output", "o", "", "file to write, - for stdout")

	archive := &cobra.Command{
		Use:   "archive <id>",
		Short: "Upload a live transcript to the object store (query_admin)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := flags.newClient().call(cmd.Context(), http.MethodPost, sessionPath(args[0])+"/archive", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}

	var purge bool
	end := &cobra.Command{
		Use:   "end <id>",
		Short: "End a live session, optionally deleting archived copies",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := sessionPath(args[0])
			if purge {
				path += "?purge=true"
			}
			raw, err := flags.newClient().call(cmd.Context(), http.MethodDelete, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	end.Flags().BoolVar(&purge, "purge", false, "also delete archived transcripts")

	cmd.AddCommand(show, export, archive, end)
	return cmd
}

func sessionPath(id string) string {
	return "/v1/chat/sessions/" + url.PathEscape(id)
}
