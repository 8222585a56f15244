package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smith3v/mathquiz/pkg/account"
	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/spf13/cobra"
)

const passwordEnv = "MATHQUIZ_PASSWORD"

const passwordUsage = "password; visible to other local users, prefer " + passwordEnv + " or stdin"

var errInvalidCredentials = errors.New("invalid credentials")

// readPassword returns the --password flag when given, then $MATHQUIZ_PASSWORD,
// then the first line of stdin.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if cmd.Flags().Changed("password") {
		return flagValue, nil
	}
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create, inspect and remove accounts",
	}
	cmd.AddCommand(
		newAccountCreateCmd(a),
		newAccountLoginCmd(a),
		newAccountShowCmd(a),
		newAccountDeleteCmd(a),
	)
	return cmd
}

func newAccountCreateCmd(a *app) *cobra.Command {
	var in account.NewAccount
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Sign up a new account",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, in.Password)
			if err != nil {
				return err
			}
			in.Password = pw
			id, err := account.NewRepository(a.db).Create(in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account %d\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", passwordUsage)
	cmd.Flags().StringVar(&in.FocusArea, "focus-area", "", focusAreaUsage(", Other when blank or unknown"))
	cmd.Flags().StringVar(&in.Role, "role", db.RoleStudent, "student or teacher")
	return cmd
}

func newAccountLoginCmd(a *app) *cobra.Command {
	var email, pw string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check an email and password pair",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, pw)
			if err != nil {
				return err
			}
			ok, err := account.NewRepository(a.db).Authenticate(email, password)
			if err != nil {
				return err
			}
			if !ok {
				return errInvalidCredentials
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&pw, "password", "", passwordUsage)
	return cmd
}

func newAccountShowCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print an account as JSON",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			acc, err := account.NewRepository(a.db).Get(email)
			if err != nil {
				return err
			}
			if acc == nil {
				return db.NotFound("account", email)
			}
			return printJSON(cmd.OutOrStdout(), acc)
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	return cmd
}

func newAccountDeleteCmd(a *app) *cobra.Command {
	var id uint
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account with its sessions and statistics",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			if err := account.NewRepository(a.db).Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted account %d\n", id)
			return nil
		}),
	}
	cmd.Flags().UintVar(&id, "id", 0, "account id")
	return cmd
}
