package cli

import (
	"context"
	"fmt"
	"strings"
)

// getSecret is an indirection used to facilitate testing.
var getSecret = GetSecret

// Login signs the session in with an access token, taken from args or
// prompted for. The workspace follows the session and reloads for the new
// owner; an init failure is reported but the sign-in stands.
func (a *App) Login(ctx context.Context, args []string) error {
	var token string
	if len(args) > 0 {
		token = args[0]
	} else {
		t, err := getSecret(a.reader, "Enter access token", a.out)
		if err != nil {
			return err
		}
		token = t
	}
	token = strings.TrimSpace(token)

	if err := a.session.SignIn(token); err != nil {
		return err
	}
	owner, _ := a.session.Current()
	if err := a.workspace.Err(); err != nil {
		a.logger.Warn(ctx, "workspace not fully loaded", "error", err)
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", owner)
	return nil
}

// Logout signs the session out; the workspace drops everything it holds.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if saver := a.workspace.Autosaver(); saver != nil && saver.Pending() > 0 {
		a.logger.Warn(ctx, "discarding unsaved edits", "documents", saver.Pending())
	}
	a.session.SignOut()
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *App) Whoami(_ context.Context, _ []string) error {
	owner, ok := a.session.Current()
	if !ok {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	fmt.Fprintln(a.out, owner)
	return nil
}
