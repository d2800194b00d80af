package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"moochat/api"
	"moochat/config"
	"moochat/storage"
)

// tokenSkew is how far past expiry a token is still sent before warning.
const tokenSkew = time.Minute

// app bundles what most commands need.
type app struct {
	cfg    *config.Config
	creds  *config.CredentialStore
	client *api.Client
	out    io.Writer
	errOut io.Writer
}

// loadConfig reads the configuration files and applies command line flags.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v.IsSet("server") {
		cfg.ServerURL = v.GetString("server")
	}
	if v.IsSet("model") {
		cfg.DefaultModel = v.GetString("model")
	}
	if v.GetBool("debug") {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	config.InitDebugLog(cfg.DataDir(), cfg.Debug)
	return cfg, nil
}

// newApp loads configuration and credentials. With needLogin it fails with
// config.ErrNoToken when no token is available.
func newApp(cmd *cobra.Command, v *viper.Viper, needLogin bool) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	creds := cfg.NewCredentialStore()
	if err := loadCredentials(cmd, creds, cfg.DataDir()); err != nil {
		return nil, err
	}

	token := cfg.Token
	if token == "" {
		token, _ = creds.Token()
	}
	if needLogin && token == "" {
		return nil, config.ErrNoToken
	}
	if token != "" {
		warnIfExpired(cmd.ErrOrStderr(), token)
	}

	return &app{
		cfg:    cfg,
		creds:  creds,
		client: api.NewClient(cfg.ServerURL, api.WithToken(token)),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}, nil
}

// loadCredentials loads the store, asking for the SSH key passphrase if the
// key turns out to be encrypted.
func loadCredentials(cmd *cobra.Command, creds *config.CredentialStore, dataDir string) error {
	err := creds.Load(dataDir)
	if !errors.Is(err, config.ErrPassphraseRequired) {
		return err
	}

	passphrase := os.Getenv("MOOCHAT_SSH_PASSPHRASE")
	if passphrase == "" {
		passphrase, err = readSecret(cmd, "SSH key passphrase: ")
		if err != nil {
			return err
		}
	}
	creds.SetPassphrase(passphrase)
	return creds.Load(dataDir)
}

// readSecret prompts on stderr and reads a line from stdin without echo when
// stdin is a terminal.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(cmd)
}

func readLine(cmd *cobra.Command) (string, error) {
	var b strings.Builder
	buf := make([]byte, 1)
	in := cmd.InOrStdin()
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			b.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func warnIfExpired(w io.Writer, token string) {
	info, err := config.InspectToken(token)
	if err != nil {
		// opaque tokens are fine; only JWTs carry an expiry
		return
	}
	if info.Expired(time.Now(), tokenSkew) {
		fmt.Fprintf(w, "Warning: login expired at %s, run `moochat login`\n", info.ExpiresAt.Local().Format(time.RFC1123))
	}
}

func (a *app) openStore() (*storage.TranscriptStore, error) {
	store, err := storage.OpenPath(a.cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("local cache unavailable: %w", err)
	}
	return store, nil
}

func (a *app) saveCredentials() error {
	return a.creds.Save(a.cfg.DataDir())
}

// printTable writes rows under headers with a plain border.
func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
