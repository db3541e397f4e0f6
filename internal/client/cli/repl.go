package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dmitrijs2005/drivesync/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

var errUnknownCommand = errors.New("unknown command")

// execIface is the command surface the REPL drives. The real App type
// satisfies it; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	dispatch(ctx context.Context, cmd string, args []string) error
}

// command is one REPL verb.
type command struct {
	usage   string
	help    string
	minArgs int
	public  bool
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":  {usage: "login [token]", help: "sign in with an access token", public: true, run: (*App).Login},
	"logout": {usage: "logout", help: "sign out", run: (*App).Logout},
	"whoami": {usage: "whoami", help: "show the signed-in owner", public: true, run: (*App).Whoami},

	"ls":     {usage: "ls", help: "list the current folder", run: (*App).List},
	"cd":     {usage: "cd <folder|..|/>", help: "change folder", minArgs: 1, run: (*App).ChangeFolder},
	"pwd":    {usage: "pwd", help: "show the breadcrumb trail", run: (*App).PrintTrail},
	"mkdir":  {usage: "mkdir <name>", help: "create a folder", minArgs: 1, run: (*App).MakeFolder},
	"touch":  {usage: "touch <name>", help: "create a document", minArgs: 1, run: (*App).NewDocument},
	"cat":    {usage: "cat <file>", help: "print a document", minArgs: 1, run: (*App).Show},
	"edit":   {usage: "edit <file>", help: "replace a document's content (autosaved)", minArgs: 1, run: (*App).Edit},
	"upload": {usage: "upload <path> [name]", help: "upload a local file", minArgs: 1, run: (*App).Upload},
	"rm":     {usage: "rm <file>", help: "delete a file or folder", minArgs: 1, run: (*App).Remove},
	"mv":     {usage: "mv <file> <new name>", help: "rename", minArgs: 2, run: (*App).Rename},
	"star":   {usage: "star <file>", help: "toggle the star", minArgs: 1, run: (*App).Star},
	"share":  {usage: "share <file> <email>", help: "share with someone", minArgs: 2, run: (*App).Share},

	"notes":     {usage: "notes", help: "list notes", run: (*App).ListNotes},
	"note":      {usage: "note", help: "create a note", run: (*App).AddNote},
	"shownote":  {usage: "shownote <note>", help: "print a note", minArgs: 1, run: (*App).ShowNote},
	"pin":       {usage: "pin <note>", help: "toggle pin", minArgs: 1, run: (*App).Pin},
	"rmnote":    {usage: "rmnote <note>", help: "delete a note", minArgs: 1, run: (*App).RemoveNote},
	"additem":   {usage: "additem <note> <text>", help: "add a checklist item", minArgs: 2, run: (*App).AddItem},
	"tick":      {usage: "tick <note> <item>", help: "toggle a checklist item", minArgs: 2, run: (*App).TickItem},
	"rmitem":    {usage: "rmitem <note> <item>", help: "remove a checklist item", minArgs: 2, run: (*App).RemoveItem},
	"summarize": {usage: "summarize <note>", help: "store an AI summary", minArgs: 1, run: (*App).Summarize},
}

func helpText(loggedIn bool) string {
	names := make([]string, 0, len(commands))
	for name, c := range commands {
		if loggedIn || c.public {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(&b, "  %-24s %s\n", c.usage, c.help)
	}
	b.WriteString("  help | exit | quit")
	return b.String()
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	c, ok := commands[cmd]
	if !ok {
		return errUnknownCommand
	}
	if !c.public && !a.isLoggedIn() {
		return common.ErrAuthRequired
	}
	if len(args) < c.minArgs {
		return fmt.Errorf("usage: %s", c.usage)
	}
	return c.run(a, ctx, args)
}

// runREPL starts a simple read–eval–print loop for the drivesync CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches the rest as arguments. Command errors are printed and the loop
// continues. The loop exits on EOF or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ds %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			printlnFn(helpText(a.isLoggedIn()))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			err := a.dispatch(ctx, cmd, parts[1:])
			switch {
			case err == nil:
			case errors.Is(err, errUnknownCommand):
				printlnFn("Unknown command:", cmd)
			default:
				printlnFn("Error:", err)
			}
		}
	}
}
