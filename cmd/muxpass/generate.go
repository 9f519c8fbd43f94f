package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/muxpass/pkg/security"
)

const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	minPasswordLength     = 8
	maxPasswordLength     = 256
	defaultPasswordLength = 24
	defaultPasswordCount  = 1
	maxPasswordCount      = 100
	maxExcludeLength      = 256
)

// generateOptions describes the passwords to generate. It is shared by the
// generate command and add --generate.
type generateOptions struct {
	length      int
	count       int
	noSymbols   bool
	noNumbers   bool
	noUppercase bool
	noLowercase bool
	exclude     string
}

var (
	genOpts      generateOptions
	generateCopy bool
	generateRate bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	addGenerateFlags(generateCmd, &genOpts)
	generateCmd.Flags().IntVarP(&genOpts.count, "count", "n", defaultPasswordCount, "Number of passwords to generate (1-100)")
	generateCmd.Flags().BoolVarP(&generateCopy, "copy", "c", false, "Copy first password to clipboard (accessible to all processes)")
	generateCmd.Flags().BoolVar(&generateRate, "strength", false, "Print the strength rating after each password")
}

func addGenerateFlags(cmd *cobra.Command, opts *generateOptions) {
	cmd.Flags().IntVarP(&opts.length, "length", "l", defaultPasswordLength, "Password length (8-256)")
	cmd.Flags().BoolVar(&opts.noSymbols, "no-symbols", false, "Exclude symbols")
	cmd.Flags().BoolVar(&opts.noNumbers, "no-numbers", false, "Exclude numbers")
	cmd.Flags().BoolVar(&opts.noUppercase, "no-uppercase", false, "Exclude uppercase letters")
	cmd.Flags().BoolVar(&opts.noLowercase, "no-lowercase", false, "Exclude lowercase letters")
	cmd.Flags().StringVar(&opts.exclude, "exclude", "", "Characters to exclude")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate secure random passwords",
	Long: `Generate cryptographically secure random passwords.

Examples:
  # Generate a 24-character password (default)
  muxpass generate

  # Generate a 32-character password without symbols
  muxpass generate -l 32 --no-symbols

  # Generate 5 passwords
  muxpass generate -n 5

  # Generate password excluding ambiguous characters
  muxpass generate --exclude "0O1lI"`,
	RunE: executeGenerate,
}

func executeGenerate(cmd *cobra.Command, args []string) error {
	passwords, err := genOpts.generate()
	if err != nil {
		return err
	}

	for _, password := range passwords {
		if generateRate {
			fmt.Printf("%s\t%s\n", password, security.Evaluate(password).Strength)
			continue
		}
		fmt.Println(password)
	}

	if generateCopy && len(passwords) > 0 {
		if err := copyToClipboard(passwords[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "Password copied to clipboard")
		}
	}

	return nil
}

// generate validates o and returns o.count passwords. A zero count means one.
func (o generateOptions) generate() ([]string, error) {
	if o.count == 0 {
		o.count = 1
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	charset, err := o.charset()
	if err != nil {
		return nil, err
	}

	passwords := make([]string, o.count)
	for i := range passwords {
		password, err := o.draw(charset)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		passwords[i] = password
	}
	return passwords, nil
}

func (o generateOptions) validate() error {
	if o.length < minPasswordLength {
		return fmt.Errorf("password length must be at least %d characters", minPasswordLength)
	}
	if o.length > maxPasswordLength {
		return fmt.Errorf("password length must be at most %d characters", maxPasswordLength)
	}
	if o.count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if o.count > maxPasswordCount {
		return fmt.Errorf("count must be at most %d", maxPasswordCount)
	}
	if len(o.exclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

// charset is the alphabet the flags leave, minus o.exclude.
func (o generateOptions) charset() (string, error) {
	classes := []struct {
		off   bool
		chars string
	}{
		{o.noLowercase, charsetLowercase},
		{o.noUppercase, charsetUppercase},
		{o.noNumbers, charsetDigits},
		{o.noSymbols, charsetSymbols},
	}

	var b strings.Builder
	for _, class := range classes {
		if class.off {
			continue
		}
		for _, c := range class.chars {
			if !strings.ContainsRune(o.exclude, c) {
				b.WriteRune(c)
			}
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}
	return b.String(), nil
}

// draw picks o.length characters from charset, each uniformly at random.
func (o generateOptions) draw(charset string) (string, error) {
	n := big.NewInt(int64(len(charset)))
	out := make([]byte, o.length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}

// clipboardCommand returns the argv that reads stdin into the clipboard.
func clipboardCommand(goos string, lookPath func(string) (string, error)) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{"pbcopy"}, nil
	case "windows":
		return []string{"clip"}, nil
	case "linux":
		for _, argv := range [][]string{
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
			{"wl-copy"},
		} {
			if _, err := lookPath(argv[0]); err == nil {
				return argv, nil
			}
		}
		return nil, fmt.Errorf("clipboard tool not found: install xclip, xsel or wl-clipboard")
	}
	return nil, fmt.Errorf("clipboard not supported on %s", goos)
}

func copyToClipboard(text string) error {
	argv, err := clipboardCommand(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}
