package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/manash/stability-skill/internal/host"
	"github.com/manash/stability-skill/internal/session"
	"github.com/manash/stability-skill/internal/skill"
)

const commandPrefix = "/"

// Skill is what a conversation drives.
type Skill interface {
	Turn(ctx context.Context, sess host.Session, utterance string) skill.TurnResult
	HandleQuery(ctx context.Context, sess host.Session, query string)
	ShowResult(sess host.Session) string
	StopSession(sess host.Session) bool
	Store() *session.Store
}

// REPL is a console conversation. Every line is an utterance in the
// current session unless it starts with '/'.
type REPL struct {
	in       io.Reader
	out      io.Writer
	err      io.Writer
	skill    Skill
	session  host.Session
	active   bool
	newID    func() string
	commands map[string]Command
	running  bool
}

type Config struct {
	In    io.Reader
	Out   io.Writer
	Err   io.Writer
	Skill Skill
	Lang  string
	NewID func() string
}

func New(cfg *Config) *REPL {
	r := &REPL{
		in:       cfg.In,
		out:      cfg.Out,
		err:      cfg.Err,
		skill:    cfg.Skill,
		newID:    cfg.NewID,
		commands: make(map[string]Command),
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "en-us"
	}
	r.session = host.Session{Lang: lang}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()
	defer r.endSession()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, commandPrefix) {
		return r.utter(ctx, line)
	}

	parts := parseCommand(strings.TrimPrefix(line, commandPrefix))
	if len(parts) == 0 {
		return nil
	}

	name := strings.ToLower(parts[0])
	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: /%s (type '/help' for available commands)", name)
	}
	return cmd.Execute(ctx, r, parts[1:])
}

func (r *REPL) utter(ctx context.Context, utterance string) error {
	sess := r.current()
	res := r.skill.Turn(ctx, sess, utterance)
	if !res.Matched {
		fmt.Fprintln(r.out, "(not a drawing request)")
	}
	return nil
}

// current returns the active session, starting one if needed.
func (r *REPL) current() host.Session {
	if !r.active {
		r.session.ID = r.newID()
		r.active = true
	}
	return r.session
}

func (r *REPL) endSession() bool {
	if !r.active {
		return false
	}
	r.skill.StopSession(r.session)
	r.active = false
	r.session.ID = ""
	return true
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "stability-skill conversation")
	fmt.Fprintln(r.out, "Say what to draw. Type '/help' for commands, '/quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	if r.active {
		fmt.Fprintf(r.out, "[%s %s]> ", r.session.Lang, shortID(r.session.ID))
	} else {
		fmt.Fprintf(r.out, "[%s]> ", r.session.Lang)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
