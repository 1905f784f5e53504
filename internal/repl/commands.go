package repl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func allCommands() []Command {
	return []Command{
		&DrawCommand{},
		&ShowCommand{},
		&StateCommand{},
		&NewCommand{},
		&EndCommand{},
		&LangCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// DrawCommand skips keyword matching and draws the text as given.
type DrawCommand struct{}

func (c *DrawCommand) Name() string        { return "draw" }
func (c *DrawCommand) Aliases() []string   { return []string{"d"} }
func (c *DrawCommand) Description() string { return "Draw the text as given, without matching" }
func (c *DrawCommand) Usage() string       { return "/draw <query>" }

func (c *DrawCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	r.skill.HandleQuery(ctx, r.current(), strings.Join(args, " "))
	return nil
}

type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return nil }
func (c *ShowCommand) Description() string { return "Present the session's last drawing again" }
func (c *ShowCommand) Usage() string       { return "/show" }

func (c *ShowCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if !r.active {
		return fmt.Errorf("no active session")
	}
	r.skill.ShowResult(r.session)
	return nil
}

type StateCommand struct{}

func (c *StateCommand) Name() string        { return "state" }
func (c *StateCommand) Aliases() []string   { return []string{"s"} }
func (c *StateCommand) Description() string { return "Show the current session's query state" }
func (c *StateCommand) Usage() string       { return "/state" }

func (c *StateCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if !r.active {
		fmt.Fprintln(r.out, "No active session.")
		return nil
	}
	st, ok := r.skill.Store().Get(r.session.ID)
	if !ok {
		fmt.Fprintf(r.out, "Session %s has no query yet.\n", r.session.ID)
		return nil
	}

	fmt.Fprintf(r.out, "Session: %s\n", r.session.ID)
	fmt.Fprintf(r.out, "  Query:  %s\n", st.Query)
	fmt.Fprintf(r.out, "  Status: %s\n", st.Status)
	fmt.Fprintf(r.out, "  Title:  %s\n", st.Title)
	fmt.Fprintf(r.out, "  Turns:  %d\n", st.TurnIndex)
	if st.HasImage() {
		fmt.Fprintf(r.out, "  Image:  %s\n", st.ImagePath)
	}
	fmt.Fprintf(r.out, "  Since:  %s\n", humanize.Time(st.CreatedAt))
	return nil
}

type NewCommand struct{}

func (c *NewCommand) Name() string        { return "new" }
func (c *NewCommand) Aliases() []string   { return []string{"n"} }
func (c *NewCommand) Description() string { return "End the current session and start a new one" }
func (c *NewCommand) Usage() string       { return "/new" }

func (c *NewCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	r.endSession()
	sess := r.current()
	fmt.Fprintf(r.out, "Started session %s\n", sess.ID)
	return nil
}

type EndCommand struct{}

func (c *EndCommand) Name() string        { return "end" }
func (c *EndCommand) Aliases() []string   { return nil }
func (c *EndCommand) Description() string { return "End the current session" }
func (c *EndCommand) Usage() string       { return "/end" }

func (c *EndCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	id := r.session.ID
	if !r.endSession() {
		return fmt.Errorf("no active session")
	}
	fmt.Fprintf(r.out, "Ended session %s\n", id)
	return nil
}

type LangCommand struct{}

func (c *LangCommand) Name() string        { return "lang" }
func (c *LangCommand) Aliases() []string   { return nil }
func (c *LangCommand) Description() string { return "Show or change the conversation language" }
func (c *LangCommand) Usage() string       { return "/lang [tag]" }

func (c *LangCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "Language: %s\n", r.session.Lang)
		return nil
	}
	// a session keeps the language it started with
	r.endSession()
	r.session.Lang = args[0]
	fmt.Fprintf(r.out, "Language set to %s\n", args[0])
	return nil
}

type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "/help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	commands := allCommands()
	sort.Slice(commands, func(i, j int) bool { return commands[i].Name() < commands[j].Name() })

	fmt.Fprintln(r.out, "Anything not starting with '/' is said to the skill.")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Commands:")
	for _, cmd := range commands {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-14s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "                Usage: %s\n", cmd.Usage())
	}
	return nil
}

type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "End the session and exit" }
func (c *QuitCommand) Usage() string       { return "/quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	r.endSession()
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}
