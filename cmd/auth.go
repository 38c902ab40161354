package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/secrets"
)

const passwordEnv = envPrefix + "_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session locally",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		c := setup(ctx)
		defer c.close()

		username, _ := cmd.Flags().GetString("username")
		passwordFile, _ := cmd.Flags().GetString("password-file")

		if strings.TrimSpace(username) == "" {
			var err error
			username, err = (&promptui.Prompt{Label: "Email"}).Run()
			if err != nil {
				c.fatal("reading username", err)
			}
		}

		password, err := readPassword(passwordFile)
		if err != nil {
			c.fatal("reading password", err)
		}

		if _, err := c.client.Login(ctx, username, password); err != nil {
			c.fatal("logging in", err)
		}

		user, err := c.client.Me(ctx)
		if err != nil {
			c.fatal("getting current user", err)
		}
		if err := c.store.SaveUserID(ctx, user.UserID); err != nil {
			c.fatal("saving user id", err)
		}

		c.logger.Info("logged in", zap.String("user_id", user.UserID), zap.String("email", user.Email))
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	Run: func(cmd *cobra.Command, _ []string) {
		c := setup(cmd.Context())
		defer c.close()

		if err := c.client.Logout(cmd.Context()); err != nil {
			c.fatal("logging out", err)
		}
		c.logger.Info("logged out")
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		c := setup(ctx)
		defer c.close()

		email, _ := cmd.Flags().GetString("email")
		fullName, _ := cmd.Flags().GetString("full-name")
		passwordFile, _ := cmd.Flags().GetString("password-file")

		password, err := readPassword(passwordFile)
		if err != nil {
			c.fatal("reading password", err)
		}

		reg, err := c.client.Register(ctx, email, fullName, password)
		if err != nil {
			c.fatal("registering", err)
		}

		c.logger.Info("registered",
			zap.String("user_id", reg.UserID),
			zap.String("message", reg.Message),
			zap.String("hint", fmt.Sprintf("run `%s login` to start a session", app)),
		)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Run: func(cmd *cobra.Command, _ []string) {
		c := setup(cmd.Context())
		defer c.close()

		user, err := c.client.Me(cmd.Context())
		if err != nil {
			c.fatal("getting current user", err)
		}

		if err := renderUser(cmd.OutOrStdout(), user); err != nil {
			c.fatal("rendering user", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd)

	loginCmd.Flags().StringP("username", "u", "", "account email")
	loginCmd.Flags().String("password-file", "", "file with the password (default is the "+passwordEnv+" env or a prompt)")

	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("full-name", "", "full name")
	registerCmd.Flags().String("password-file", "", "file with the password (default is the "+passwordEnv+" env or a prompt)")
	registerCmd.MarkFlagRequired("email")
	registerCmd.MarkFlagRequired("full-name")
}

// readPassword takes the password from a file, the environment or an interactive prompt.
func readPassword(file string) (string, error) {
	src := secrets.Source{Name: "password", File: file, Env: passwordEnv}
	if password, err := secrets.Load(src); err == nil || strings.TrimSpace(file) != "" {
		return password, err
	}

	p := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(s string) error {
			if s == "" {
				return errors.New("password must not be empty")
			}
			return nil
		},
	}
	return p.Run()
}
