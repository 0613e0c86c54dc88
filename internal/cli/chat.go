package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/internal/presentation/tui"
	"github.com/aretw0/skillflow/internal/sanitize"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/session"
)

// CommandKind classifies a REPL line.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandIntent
	CommandLaunch
	CommandEnd
	CommandReset
	CommandHelp
	CommandQuit
)

// Command is one parsed REPL line.
type Command struct {
	Kind   CommandKind
	Intent string
	Slots  map[string]any
}

// ErrUnknownCommand is returned by ParseLine for unrecognized slash commands.
var ErrUnknownCommand = errors.New("unknown command")

const chatHelp = `Commands:
  Intent key=value ...   send an intent with slots
  /launch                start the conversation again
  /end                   report the session as ended
  /reset                 drop the session and launch
  /help                  show this help
  /quit                  leave the chat`

// ParseLine turns a REPL line into a Command. Slot values are sanitized;
// "true", "false" and numbers are decoded, everything else stays a string.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: CommandNone}, nil
	}

	switch strings.ToLower(line) {
	case "/launch":
		return Command{Kind: CommandLaunch}, nil
	case "/end":
		return Command{Kind: CommandEnd}, nil
	case "/reset":
		return Command{Kind: CommandReset}, nil
	case "/help", "?":
		return Command{Kind: CommandHelp}, nil
	case "/quit", "/exit", "q":
		return Command{Kind: CommandQuit}, nil
	}
	if strings.HasPrefix(line, "/") {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, line)
	}

	fields := strings.Fields(line)
	intent, err := sanitize.Input(fields[0])
	if err != nil {
		return Command{}, err
	}

	cmd := Command{Kind: CommandIntent, Intent: intent, Slots: map[string]any{}}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return Command{}, fmt.Errorf("invalid slot %q: expected key=value", field)
		}
		cmd.Slots[key] = slotValue(value)
	}
	if cmd.Slots, err = sanitize.Slots(cmd.Slots); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func slotValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Chat is an interactive session against a project skill.
type Chat struct {
	Project   *Project
	Sessions  *session.Manager
	SessionID string

	In     io.Reader
	Out    io.Writer
	Render tui.RenderFunc
	Logger *slog.Logger
}

// Run launches (or resumes) the session and serves lines until /quit, EOF or
// ctx is cancelled.
func (c *Chat) Run(ctx context.Context) error {
	if c.Render == nil {
		c.Render = tui.Plain
	}
	if c.Logger == nil {
		c.Logger = logging.NewNop()
	}

	if _, err := c.Sessions.Load(ctx, c.SessionID); err == nil {
		printSystemMessage(c.Out, "Resuming session %q", c.SessionID)
	} else if errors.Is(err, domain.ErrSessionNotFound) {
		if err := c.turn(ctx, &domain.Request{Type: domain.RequestLaunch}); err != nil {
			return err
		}
	} else {
		return err
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(c.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	for {
		fmt.Fprint(c.Out, "> ")

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(c.Out)
			return err
		case line = <-lines:
		}

		cmd, err := ParseLine(line)
		if err != nil {
			printSystemMessage(c.Out, "%v", err)
			continue
		}

		switch cmd.Kind {
		case CommandNone:
			continue
		case CommandQuit:
			printSystemMessage(c.Out, "Bye!")
			return nil
		case CommandHelp:
			fmt.Fprintln(c.Out, chatHelp)
			continue
		case CommandReset:
			if err := c.Sessions.Delete(ctx, c.SessionID); err != nil {
				return err
			}
			err = c.turn(ctx, &domain.Request{Type: domain.RequestLaunch})
		case CommandLaunch:
			err = c.turn(ctx, &domain.Request{Type: domain.RequestLaunch})
		case CommandEnd:
			err = c.turn(ctx, &domain.Request{Type: domain.RequestSessionEnded})
		case CommandIntent:
			err = c.turn(ctx, &domain.Request{Type: domain.RequestIntent, IntentName: cmd.Intent, Slots: cmd.Slots})
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			printSystemMessage(c.Out, "Error: %v", err)
		}
	}
}

func (c *Chat) turn(ctx context.Context, req *domain.Request) error {
	result, err := c.Sessions.Turn(ctx, c.SessionID, func(ctx context.Context, sess *domain.Session) (*domain.Reply, error) {
		req.Session = *sess
		return c.Project.Skill.Handle(ctx, req)
	})
	if err != nil {
		return err
	}

	out, err := c.Render(tui.FormatReply(result.Reply))
	if err != nil {
		return fmt.Errorf("render reply: %w", err)
	}
	fmt.Fprint(c.Out, out)

	if result.Reply.HasTerminated() {
		printSystemMessage(c.Out, "Conversation ended. Type /launch to start again.")
	}
	return nil
}

// WatchResponses drops the template cache whenever a response document changes.
// It returns ErrNotWatchable for projects with inline responses only.
func WatchResponses(ctx context.Context, p *Project, out io.Writer) error {
	changes, err := p.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for key := range changes {
			p.Skill.Renderer().Reset()
			printSystemMessage(out, "Reloaded responses (%s)", key)
		}
	}()
	return nil
}

// RunChat is the entry point of the chat command.
func RunChat(ctx context.Context, chat *Chat) error {
	return handleExecutionError(chat.Run(ctx))
}
