package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rohankatakam/patchnote/internal/config"
	"github.com/rohankatakam/patchnote/internal/github"
)

const newTokenURL = "https://github.com/settings/tokens/new?scopes=repo&description=patchnote"

var noBrowser bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a GitHub token in the OS keychain",
	Long: `Store a GitHub personal access token in the OS keychain.

Opens the token creation page in your browser, then reads the token
without echoing it. The token is checked against the API before it is
saved. GITHUB_TOKEN in the environment always takes precedence.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the GitHub token from the OS keychain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km := config.NewKeyringManager()
		if !km.IsAvailable() {
			logger.Warn("OS keychain not available, nothing to remove")
			return nil
		}
		if err := km.DeleteGitHubToken(); err != nil {
			return fmt.Errorf("failed to logout: %w", err)
		}
		logger.Info("✓ GitHub token removed from keychain")
		if os.Getenv("GITHUB_TOKEN") != "" {
			logger.Warn("GITHUB_TOKEN is still set in the environment")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "do not open the browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain not available; set GITHUB_TOKEN instead")
	}

	if !noBrowser {
		if err := browser.OpenURL(newTokenURL); err != nil {
			logger.WithError(err).Debug("Failed to open browser")
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Create a token at: %s\n", newTokenURL)

	token, err := readToken(cmd)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("no token entered")
	}

	// verify before saving
	check := *cfg
	check.GitHub.Token = token
	a, err := newApp(cmd.Context(), &check)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.gateway.Execute(cmd.Context(), "user", github.RequestOptions{})
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	var user struct {
		Login string `json:"login"`
	}
	if err := resp.Decode(&user); err != nil {
		return err
	}

	if err := km.SetGitHubToken(token); err != nil {
		return err
	}
	logger.Infof("✓ Logged in as %s (token %s saved to keychain)", user.Login, config.MaskToken(token))
	return nil
}

// readToken reads without echo on a terminal, or a line from stdin otherwise
func readToken(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Paste token: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
