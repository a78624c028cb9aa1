package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"fwbot-go/internal/secrets"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage sealed credentials",
}

var secretsKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create the identity used to seal credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		recipient, err := secrets.Keygen(cfg.Secrets.IdentityPath)
		if err != nil {
			return err
		}
		fmt.Printf("Identity written to %s\n", cfg.Secrets.IdentityPath)
		fmt.Printf("Public key: %s\n", recipient)
		color.New(color.FgYellow).Println("Keep the identity file private; sealed credentials cannot be opened without it.")
		return nil
	},
}

var secretsSealCmd = &cobra.Command{
	Use:   "seal [NAME...]",
	Short: "Prompt for credentials and seal them",
	Long: "Prompt for each named credential (all of them when none are named) and\n" +
		"write them to the sealed file. Leaving a prompt empty keeps the sealed value.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		creds, err := secrets.Open(cfg.Secrets.IdentityPath, cfg.Secrets.SealedPath)
		if errors.Is(err, fs.ErrNotExist) {
			if _, statErr := os.Stat(cfg.Secrets.SealedPath); errors.Is(statErr, fs.ErrNotExist) {
				creds, err = &secrets.Credentials{}, nil
			}
		}
		if err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			names = secrets.Names()
		}

		in := bufio.NewReader(os.Stdin)
		for _, name := range names {
			value, err := prompt(in, name)
			if err != nil {
				return err
			}
			if value == "" {
				continue
			}
			if err := creds.Set(name, value); err != nil {
				return err
			}
		}

		if err := secrets.Seal(cfg.Secrets.IdentityPath, cfg.Secrets.SealedPath, creds); err != nil {
			return err
		}
		fmt.Printf("Credentials sealed to %s\n", cfg.Secrets.SealedPath)
		return nil
	},
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which credentials resolve, redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		creds, err := secrets.Resolve(cfg.Secrets, nil)
		if err != nil {
			return err
		}
		for _, name := range secrets.Names() {
			fmt.Printf("%-22s  %s\n", name, secrets.Redact(creds.Get(name)))
		}
		return nil
	},
}

// prompt reads one value, without echo when stdin is a terminal.
func prompt(in *bufio.Reader, name string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", name)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	secretsCmd.AddCommand(secretsKeygenCmd)
	secretsCmd.AddCommand(secretsSealCmd)
	secretsCmd.AddCommand(secretsListCmd)
}
