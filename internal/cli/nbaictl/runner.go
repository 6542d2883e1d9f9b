// Package nbaictl is the command line client for the nbai HTTP API.
package nbaictl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request fails, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := NewRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			_, _ = fmt.Fprintln(stderr, exit.err)
		}
		return exit.code
	}
	_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

type client struct {
	baseURL *string
	apiKey  *string
	timeout *time.Duration
	raw     *bool
	http    *http.Client
}

func NewRootCommand(defaults Options) *cobra.Command {
	c := &client{
		baseURL: new(string),
		apiKey:  new(string),
		timeout: new(time.Duration),
		raw:     new(bool),
		http:    defaults.HTTPClient,
	}

	root := &cobra.Command{
		Use:           "nbaictl",
		Short:         "Ask the nbai service about NBA stats",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return errors.New("a command is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	flags := root.PersistentFlags()
	flags.StringVar(c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "nbai API base URL")
	flags.StringVar(c.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	flags.DurationVar(c.timeout, "timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")
	flags.BoolVar(c.raw, "json", false, "print the raw JSON response")

	root.AddCommand(
		c.getCommand("health", "Check the API is up", "/v1/health"),
		c.getCommand("ready", "Check the snapshot and database are reachable", "/v1/ready"),
		c.tablesCommand(),
		c.getCommand("tool", "Print the get_nba_stats tool declaration", "/v1/tool"),
		c.selectCommand(),
		c.askCommand(),
	)
	return root
}

func (c *client) getCommand(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := c.call(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return writePretty(cmd.OutOrStdout(), body)
		},
	}
}

func (c *client) tablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the stats tables the service can query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := c.call(cmd.Context(), http.MethodGet, "/v1/tables", nil)
			if err != nil {
				return err
			}
			if *c.raw {
				return writePretty(cmd.OutOrStdout(), body)
			}
			var response struct {
				Tables []struct {
					Name        string `json:"name"`
					Group       string `json:"group"`
					Description string `json:"description"`
				} `json:"tables"`
			}
			if err := json.Unmarshal(body, &response); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("decode tables response: %w", err)}
			}
			rows := make([][]string, 0, len(response.Tables))
			for _, t := range response.Tables {
				rows = append(rows, []string{t.Name, t.Group, t.Description})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"TABLE", "GROUP", "DESCRIPTION"}, rows))
			return err
		},
	}
}

func (c *client) selectCommand() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "select <question>",
		Short: "Show which tables a question retrieves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"question": strings.Join(args, " ")}
			if topK > 0 {
				payload["top_k"] = topK
			}
			body, err := c.call(cmd.Context(), http.MethodPost, "/v1/tables/select", payload)
			if err != nil {
				return err
			}
			if *c.raw {
				return writePretty(cmd.OutOrStdout(), body)
			}
			var response struct {
				Tables []struct {
					TableName string  `json:"table_name"`
					Score     float64 `json:"score"`
				} `json:"tables"`
			}
			if err := json.Unmarshal(body, &response); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("decode select response: %w", err)}
			}
			rows := make([][]string, 0, len(response.Tables))
			for i, t := range response.Tables {
				rows = append(rows, []string{strconv.Itoa(i + 1), t.TableName, strconv.FormatFloat(t.Score, 'f', 4, 64)})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "TABLE", "SCORE"}, rows))
			return err
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of tables to return (server default when 0)")
	return cmd
}

func (c *client) askCommand() *cobra.Command {
	var showSQL bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with get_nba_stats",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := c.call(cmd.Context(), http.MethodPost, "/v1/stats", map[string]any{"question": strings.Join(args, " ")})
			var exit *exitError
			if err != nil && !(errors.As(err, &exit) && len(body) > 0) {
				return err
			}
			if *c.raw {
				if werr := writePretty(cmd.OutOrStdout(), body); werr != nil {
					return werr
				}
				return err
			}
			var answer struct {
				Text string `json:"text"`
				SQL  string `json:"sql"`
			}
			if jerr := json.Unmarshal(body, &answer); jerr != nil || answer.Text == "" {
				if werr := writePretty(cmd.OutOrStdout(), body); werr != nil {
					return werr
				}
				return err
			}
			if showSQL && answer.SQL != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", answer.SQL)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			if err != nil {
				// The answer text already explains the failure.
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSQL, "sql", false, "print the generated SQL before the answer")
	return cmd
}

// call returns the response body even on HTTP errors so callers can render
// the error payload.
func (c *client) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &exitError{code: 1, err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}
	httpClient := c.http
	if httpClient == nil {
		httpClient = &http.Client{Timeout: *c.timeout}
	}

	endpoint := strings.TrimRight(*c.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &exitError{code: 1, err: fmt.Errorf("request failed: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(*c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &exitError{code: 1, err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &exitError{code: 1, err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return body, &exitError{code: 1, err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}
	return body, nil
}

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}

func writePretty(w io.Writer, raw []byte) error {
	if pretty, ok := prettyJSON(raw); ok {
		_, err := fmt.Fprintln(w, pretty)
		return err
	}
	if len(raw) > 0 {
		_, err := fmt.Fprintln(w, string(raw))
		return err
	}
	return nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
