package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forest6511/muxpass/internal/app"
)

// Flags for credential commands
var (
	showIndex int

	addLink     string
	addGenerate bool
	addGenOpts  generateOptions

	editIndex    int
	editName     string
	editLink     string
	editPassword bool

	deleteForce bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)

	showCmd.Flags().IntVar(&showIndex, "index", 0, "Which of several same-named credentials (1-based, as in list)")

	addCmd.Flags().StringVar(&addLink, "link", "", "Website or login URL")
	addCmd.Flags().BoolVarP(&addGenerate, "generate", "g", false, "Generate the password instead of prompting")
	addGenerateFlags(addCmd, &addGenOpts)

	editCmd.Flags().IntVar(&editIndex, "index", 0, "Which of several same-named credentials (1-based, as in list)")
	editCmd.Flags().StringVar(&editName, "name", "", "New name")
	editCmd.Flags().StringVar(&editLink, "link", "", "New link (use --link='' to clear)")
	editCmd.Flags().BoolVar(&editPassword, "password", false, "Prompt for a new password")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")

	registerCompletionFunctions()
}

// newConsole opens the store and wires a console to the process streams.
func newConsole() (*console, error) {
	s, err := openService()
	if err != nil {
		return nil, err
	}
	return &console{
		svc:        s,
		out:        os.Stdout,
		errOut:     os.Stderr,
		readSecret: readSecret,
		confirm:    confirm,
	}, nil
}

var listCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List stored credentials with masked passwords",
	Long: `List stored credentials. Passwords are shown masked.

An optional glob pattern (e.g. "git*") filters by name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newConsole()
		if err != nil {
			return err
		}
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		return c.list(pattern)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the password of a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newConsole()
		if err != nil {
			return err
		}
		return c.show(args[0], showIndex)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Store a new credential",
	Long: `Store a new credential. The password is read from the terminal without
echo, or from stdin when piped. Use --generate to create a random one.

Names and links must not contain commas or line breaks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newConsole()
		if err != nil {
			return err
		}

		password := ""
		if addGenerate {
			passwords, err := addGenOpts.generate()
			if err != nil {
				return err
			}
			password = passwords[0]
		}
		if err := c.add(args[0], addLink, password); err != nil {
			return err
		}
		if addGenerate {
			fmt.Fprintln(os.Stderr, "Generated password stored; view it with 'muxpass show'")
		}
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Change the name, link or password of a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newConsole()
		if err != nil {
			return err
		}

		var u app.Update
		if cmd.Flags().Changed("name") {
			u.Name = &editName
		}
		if cmd.Flags().Changed("link") {
			u.Link = &editLink
		}
		if editPassword {
			password, err := c.readNewPassword()
			if err != nil {
				return err
			}
			u.Password = &password
		}
		return c.edit(args[0], editIndex, u)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <pattern>",
	Short: "Delete credentials by name or glob pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newConsole()
		if err != nil {
			return err
		}
		return c.remove(args[0], deleteForce)
	},
}
