package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/api"
	"moochat/config"
)

func newLoginCmd(v *viper.Viper) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, false)
			if err != nil {
				return err
			}
			if email == "" {
				fmt.Fprint(a.errOut, "Email: ")
				if email, err = readLine(cmd); err != nil {
					return err
				}
			}
			if password == "" {
				password = os.Getenv("MOOCHAT_PASSWORD")
			}
			if password == "" {
				if password, err = readSecret(cmd, "Password: "); err != nil {
					return err
				}
			}

			tok, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				if api.IsUnauthorized(err) {
					return fmt.Errorf("login failed: wrong email or password")
				}
				return fmt.Errorf("login failed: %w", err)
			}

			a.creds.Set(config.CredentialToken, tok.AccessToken)
			a.creds.Set(config.CredentialEmail, email)
			if err := a.saveCredentials(); err != nil {
				return fmt.Errorf("failed to store login: %w", err)
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(v *viper.Viper) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, false)
			if err != nil {
				return err
			}
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				if password, err = readSecret(cmd, "Password: "); err != nil {
					return err
				}
			}
			u, err := a.client.Register(cmd.Context(), api.RegisterRequest{Email: email, Password: password, FullName: name})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Fprintf(a.out, "Registered %s, run `moochat login` to sign in\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	return cmd
}

func newLogoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, false)
			if err != nil {
				return err
			}
			a.creds.Delete(config.CredentialToken)
			if err := a.saveCredentials(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Server: %s\n", a.cfg.ServerURL)
			if email := a.creds.Get(config.CredentialEmail); email != "" {
				fmt.Fprintf(a.out, "Email:  %s\n", email)
			}
			info, err := config.InspectToken(a.client.Token())
			if err != nil {
				return nil
			}
			if info.Subject != "" {
				fmt.Fprintf(a.out, "User:   %s\n", info.Subject)
			}
			if !info.ExpiresAt.IsZero() {
				state := "valid"
				if info.Expired(time.Now(), 0) {
					state = "expired"
				}
				fmt.Fprintf(a.out, "Token:  %s until %s\n", state, info.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}
