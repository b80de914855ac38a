package sqlchatctl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

var (
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	sqlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

// Run executes the CLI and returns a process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	defaults.Stdout = stdout
	defaults.Stderr = stderr

	root := newRootCmd(&defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, errStyle.Render("error:")+" "+err.Error())
		return 1
	}
	return 0
}

type runnerState struct {
	opts       *Options
	configPath string
	baseURL    string
	apiKey     string
	timeout    time.Duration
	connection ConnectionParams
	client     *Client
}

func newRootCmd(opts *Options) *cobra.Command {
	state := &runnerState{opts: opts}

	root := &cobra.Command{
		Use:           "sqlchatctl",
		Short:         "Talk to a sqlchat server from the terminal",
		Long:          "sqlchatctl opens chat sessions against a sqlchat API server,\nasks natural-language questions about the connected database and\nprints the generated SQL alongside each answer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.resolve(cmd)
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "", "Path to a YAML profile file")
	root.PersistentFlags().StringVar(&state.baseURL, "base-url", "", "sqlchat API base URL")
	root.PersistentFlags().StringVar(&state.apiKey, "api-key", "", "API key for authenticated requests")
	root.PersistentFlags().DurationVar(&state.timeout, "timeout", 0, "HTTP timeout (e.g. 30s)")

	root.AddCommand(newHealthCmd(state))
	root.AddCommand(newReadyCmd(state))
	root.AddCommand(newConnectCmd(state))
	root.AddCommand(newSchemaCmd(state))
	root.AddCommand(newAskCmd(state))
	root.AddCommand(newChatCmd(state))
	root.AddCommand(newResetCmd(state))
	root.AddCommand(newCloseCmd(state))
	return root
}

func (s *runnerState) resolve(cmd *cobra.Command) error {
	var profile Profile
	if s.configPath != "" {
		loaded, err := LoadProfile(s.configPath)
		if err != nil {
			return err
		}
		profile = loaded
	}

	baseURL := firstNonEmpty(s.baseURL, profile.BaseURL, s.opts.BaseURL, "http://localhost:8080")
	apiKey := firstNonEmpty(s.apiKey, profile.APIKey, s.opts.APIKey)
	s.connection = profile.Connection
	mergeConnectionFlags(cmd, &s.connection)

	httpClient := s.opts.HTTPClient
	if httpClient == nil {
		timeout := s.timeout
		if timeout <= 0 {
			timeout = s.opts.Timeout
		}
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	s.client = &Client{BaseURL: baseURL, APIKey: apiKey, HTTP: httpClient}
	return nil
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("driver", "", "Database driver (postgres or duckdb)")
	cmd.Flags().String("host", "", "Database host")
	cmd.Flags().String("port", "", "Database port")
	cmd.Flags().String("username", "", "Database username")
	cmd.Flags().String("password", "", "Database password")
	cmd.Flags().String("database", "", "Database name (or file path for duckdb)")
}

func mergeConnectionFlags(cmd *cobra.Command, conn *ConnectionParams) {
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"driver":   &conn.Driver,
		"host":     &conn.Host,
		"port":     &conn.Port,
		"username": &conn.Username,
		"password": &conn.Password,
		"database": &conn.Database,
	} {
		if flags.Lookup(name) == nil {
			continue
		}
		if value, err := flags.GetString(name); err == nil && value != "" {
			*dst = value
		}
	}
}

func newHealthCmd(state *runnerState) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := state.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(state.opts.Stdout, body)
		},
	}
}

func newReadyCmd(state *runnerState) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := state.client.Ready(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(state.opts.Stdout, body)
		},
	}
}

func newConnectCmd(state *runnerState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a session and print its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := state.client.CreateSession(cmd.Context(), state.connection)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(state.opts.Stdout, labelStyle.Render("session")+" "+info.SessionID)
			_, _ = fmt.Fprintln(state.opts.Stdout, info.SchemaText)
			return nil
		},
	}
	addConnectionFlags(cmd)
	return cmd
}

func newSchemaCmd(state *runnerState) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <session-id>",
		Short: "Print the current schema of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := state.client.Schema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(state.opts.Stdout, info.SchemaText)
			return nil
		},
	}
}

func newAskCmd(state *runnerState) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <session-id> <question...>",
		Short: "Ask one question within an existing session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := state.client.Ask(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printChatResult(state.opts.Stdout, result)
			return nil
		},
	}
}

func newChatCmd(state *runnerState) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question loop",
		Long:  "Opens a session (unless --session is given) and reads questions\nfrom stdin until EOF or \"exit\".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := state.opts.Stdout
			if sessionID == "" {
				info, err := state.client.CreateSession(cmd.Context(), state.connection)
				if err != nil {
					return err
				}
				sessionID = info.SessionID
				defer func() { _ = state.client.Close(context.Background(), sessionID) }()
				_, _ = fmt.Fprintln(stdout, labelStyle.Render("session")+" "+sessionID)
			}

			stdin := state.opts.Stdin
			if stdin == nil {
				return fmt.Errorf("no input attached")
			}
			scanner := bufio.NewScanner(stdin)
			_, _ = fmt.Fprint(stdout, "> ")
			for scanner.Scan() {
				question := strings.TrimSpace(scanner.Text())
				if question == "exit" || question == "quit" {
					break
				}
				if question != "" {
					result, err := state.client.Ask(cmd.Context(), sessionID, question)
					if err != nil {
						_, _ = fmt.Fprintln(state.opts.Stderr, errStyle.Render("error:")+" "+err.Error())
					} else {
						printChatResult(stdout, result)
					}
				}
				_, _ = fmt.Fprint(stdout, "> ")
			}
			_, _ = fmt.Fprintln(stdout)
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Existing session ID to chat in")
	addConnectionFlags(cmd)
	return cmd
}

func newResetCmd(state *runnerState) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Clear the conversation history of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.client.Reset(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(state.opts.Stdout, "history cleared")
			return nil
		},
	}
}

func newCloseCmd(state *runnerState) *cobra.Command {
	return &cobra.Command{
		Use:   "close <session-id>",
		Short: "Close a session and its database connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.client.Close(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(state.opts.Stdout, "session closed")
			return nil
		},
	}
}

func printChatResult(w io.Writer, result ChatResult) {
	_, _ = fmt.Fprintln(w, sqlStyle.Render(result.SQL))
	if result.Failed {
		_, _ = fmt.Fprintln(w, errStyle.Render("statement failed:")+" "+result.Error)
	}
	_, _ = fmt.Fprintln(w, answerStyle.Render(result.Answer))
}

func printJSON(w io.Writer, value any) error {
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, string(formatted))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
