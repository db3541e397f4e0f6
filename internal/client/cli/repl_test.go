package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  [][]string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }

func (f *fakeExec) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		f.loggedIn = true
	case "logout":
		f.loggedIn = false
	case "boom":
		f.calls = append(f.calls, cmd)
		return errors.New("boom")
	case "foobar":
		return errUnknownCommand
	}
	f.calls = append(f.calls, cmd)
	f.args = append(f.args, args)
	return nil
}

func silence(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i] = strings.TrimSpace(strings.ReplaceAll(toString(v), "\n", " "))
		}
		printed = append(printed, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &printed
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case error:
		return s.Error()
	default:
		return ""
	}
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	silence(t)

	input := strings.Join([]string{
		"help",
		"login",
		"help",
		"mkdir Projects",
		"",
		"cd Projects",
		"ls",
		"foobar",
		"logout",
		"exit",
		"ls",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, rdr(input))

	want := []string{"login", "mkdir", "cd", "ls", "logout"}
	if strings.Join(exec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}
	if got := exec.args[1]; len(got) != 1 || got[0] != "Projects" {
		t.Fatalf("mkdir args = %v", got)
	}
}

func TestRunREPL_ErrorsDoNotStopLoop(t *testing.T) {
	printed := silence(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "s" }, rdr("boom\nfoobar\nls"))

	if len(exec.calls) != 2 || exec.calls[1] != "ls" {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	joined := strings.Join(*printed, "|")
	if !strings.Contains(joined, "Error: boom") {
		t.Fatalf("error not printed: %q", joined)
	}
	if !strings.Contains(joined, "Unknown command: foobar") {
		t.Fatalf("unknown command not reported: %q", joined)
	}
}

func TestHelpText(t *testing.T) {
	out := helpText(false)
	if !strings.Contains(out, "login") || strings.Contains(out, "mkdir") {
		t.Fatalf("signed-out help: %q", out)
	}
	out = helpText(true)
	for _, c := range []string{"mkdir", "upload", "additem", "share"} {
		if !strings.Contains(out, c) {
			t.Fatalf("signed-in help misses %s: %q", c, out)
		}
	}
}
