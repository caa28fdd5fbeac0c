package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
)

type options struct {
	server   string
	device   string
	person   string
	session  string
	timeout  time.Duration
	logLevel string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}

	opts := &options{}
	root := &cobra.Command{
		Use:   "dialogtester",
		Short: "Drive a running transit voice backend turn by turn",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			if l, err := zerolog.ParseLevel(opts.logLevel); err == nil {
				zerolog.SetGlobalLevel(l)
			}
			if opts.session == "" {
				opts.session = "tester-" + uuid.NewString()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer(), "Backend base URL")
	root.PersistentFlags().StringVar(&opts.device, "device", "tester-device", "Device id sent with every turn")
	root.PersistentFlags().StringVar(&opts.person, "person", "", "Recognized person id, empty for anonymous")
	root.PersistentFlags().StringVar(&opts.session, "session", "", "Session id, generated when empty")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "Per-turn timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level")

	root.AddCommand(newTurnCommand(opts), newChatCommand(opts))
	cobra.CheckErr(root.Execute())
}

func defaultServer() string {
	if url := strings.TrimSpace(os.Getenv("DIALOGTESTER_SERVER")); url != "" {
		return url
	}
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	return "http://localhost:" + strings.TrimPrefix(port, ":")
}

func newTurnCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "turn <launch|IntentName [slot=value...]>",
		Short: "Send a single turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turn, err := parseTurn(args)
			if err != nil {
				return err
			}
			client := newClient(opts)
			reply, err := client.send(cmd.Context(), turn)
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func newChatCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Read turns from stdin, one per line, within one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient(opts)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s, type 'launch' or 'IntentName slot=value', empty line to quit\n", opts.session)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					return nil
				}
				turn, err := parseTurn(strings.Fields(line))
				if err != nil {
					fmt.Fprintln(out, "error:", err)
					continue
				}
				reply, err := client.send(cmd.Context(), turn)
				if err != nil {
					log.Error().Err(err).Msg("turn failed")
					continue
				}
				printReply(out, reply)
				if reply.ShouldEndSession {
					fmt.Fprintln(out, "(session ended)")
				}
			}
		},
	}
}

// parseTurn reads "launch", "end", or an intent name followed by slot=value pairs.
func parseTurn(args []string) (dialog.Turn, error) {
	if len(args) == 0 {
		return dialog.Turn{}, errors.New("empty turn")
	}
	switch strings.ToLower(args[0]) {
	case "launch":
		return dialog.Turn{Kind: dialog.TurnLaunch}, nil
	case "end":
		return dialog.Turn{Kind: dialog.TurnSessionEnded}, nil
	case "enable":
		return dialog.Turn{Kind: dialog.TurnSkillEnabled}, nil
	case "disable":
		return dialog.Turn{Kind: dialog.TurnSkillDisabled}, nil
	}

	turn := dialog.Turn{Kind: dialog.TurnIntent, IntentName: args[0]}
	for _, pair := range args[1:] {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return dialog.Turn{}, errors.Errorf("slot %q must look like name=value", pair)
		}
		if turn.Slots == nil {
			turn.Slots = make(map[string]string)
		}
		turn.Slots[name] = strings.ReplaceAll(value, "_", " ")
	}
	return turn, nil
}

type client struct {
	opts *options
	http *http.Client
}

func newClient(opts *options) *client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	hc := rc.StandardClient()
	hc.Timeout = opts.timeout
	return &client{opts: opts, http: hc}
}

type turnReply struct {
	SessionID string `json:"sessionId"`
	dialog.Reply
}

func (c *client) send(ctx context.Context, turn dialog.Turn) (turnReply, error) {
	turn.SessionID = c.opts.session
	turn.DeviceID = c.opts.device
	turn.PersonID = c.opts.person

	body, err := json.Marshal(turn)
	if err != nil {
		return turnReply{}, errors.Wrap(err, "encode turn")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.opts.server, "/")+"/api/turn", bytes.NewReader(body))
	if err != nil {
		return turnReply{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return turnReply{}, errors.Wrap(err, "post turn")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return turnReply{}, errors.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var reply turnReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return turnReply{}, errors.Wrap(err, "decode reply")
	}
	return reply, nil
}

func printReply(w io.Writer, reply turnReply) {
	fmt.Fprintln(w, reply.SpeechText)
	if reply.Session != nil && reply.Session.DialogState != dialog.StateNone {
		fmt.Fprintf(w, "  [state %s]\n", reply.Session.DialogState)
	}
}
