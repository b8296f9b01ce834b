package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"snapbot/pkg/auth"
)

var authProfile string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Telegram bot token",
	Long: `Manage the stored Telegram bot token.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your token or config files!`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store the bot token securely",
	Long: `Store the bot token in the system keychain or encrypted file.

When no token is given you are prompted for it and input is hidden.`,
	Example: `  # Interactive
  snapbot auth set

  # Non-interactive
  snapbot auth set 123456789:AAH-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSet,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored bot token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize token store: %w", err)
		}
		if err := manager.Delete(authProfile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Token removed")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the bot token is stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize token store: %w", err)
		}
		out := cmd.OutOrStdout()
		token, err := manager.Retrieve(authProfile)
		if err != nil {
			fmt.Fprintln(out, "❌ No token stored. Run 'snapbot auth set'.")
			return nil
		}
		fmt.Fprintf(out, "🔑 Token: %s\n", auth.MaskToken(token.Value))
		fmt.Fprintf(out, "📦 Source: %s\n", manager.Source(authProfile))
		if !token.LastModified.IsZero() {
			fmt.Fprintf(out, "🕒 Updated: %s\n", token.LastModified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authClearCmd, authStatusCmd)
	authCmd.PersistentFlags().StringVar(&authProfile, "profile", auth.DefaultProfile, "token profile name")
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	var value string
	if len(args) > 0 {
		value = strings.TrimSpace(args[0])
	} else {
		auth.ShowTokenGuide(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), "\n🔐 Bot token (hidden): ")
		value, err = readSecret()
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	where, err := manager.Store(authProfile, value)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Token %s stored in %s\n", auth.MaskToken(value), where)
	return nil
}

// readSecret reads a line from stdin without echo when attached to a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
