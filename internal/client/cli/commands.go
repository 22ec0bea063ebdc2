package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sessionguard/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) credentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out, "Enter password: ")
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

func (a *App) register(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Register(ctx, email, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Registered and logged in.")
	return nil
}

func (a *App) login(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Login(ctx, email, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) me(ctx context.Context) error {
	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", user.Email)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// deleteAccount asks for the password and, optionally, the account email as
// a confirmation. A wrong email ends the current session on the server.
func (a *App) deleteAccount(ctx context.Context) error {
	password, err := getPassword(a.out, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	email, err := getSimpleText(a.reader, "Confirm email (optional)", a.out)
	if err != nil {
		return err
	}

	if err := a.client.DeleteAccount(ctx, password, email); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account deleted.")
	return nil
}

func (a *App) changePassword(ctx context.Context) error {
	current, err := getPassword(a.out, "Enter current password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := getPassword(a.out, "Enter new password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	n, err := a.client.ChangePassword(ctx, current, next)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Password changed, %d other session(s) ended.\n", n)
	return nil
}

func (a *App) sessions(ctx context.Context) error {
	list, err := a.client.Sessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range list {
		marker := " "
		if s.Current {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s  %-7s  created %s", marker, s.ID, s.Status, s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if s.ExpiresAt != nil {
			line += "  expires " + s.ExpiresAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}
