package main

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/muxpass/internal/app"
	"github.com/forest6511/muxpass/internal/config"
	"github.com/forest6511/muxpass/pkg/session"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script for your shell",
	Long: `To load completions:

Bash:
  $ source <(muxpass completion bash)

Zsh:
  $ muxpass completion zsh > ~/.zsh/completions/_muxpass

Fish:
  $ muxpass completion fish > ~/.config/fish/completions/muxpass.fish

PowerShell:
  PS> muxpass completion powershell >> $PROFILE

Dynamic completion (credential names):
  Set MUXPASS_COMPLETION_ENABLED=1 to complete credential names for
  show, edit and delete. Names are read from the store; passwords are not.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// registerCompletionFunctions attaches name completion to the commands that
// take a credential name.
func registerCompletionFunctions() {
	for _, cmd := range []*cobra.Command{showCmd, editCmd, deleteCmd} {
		cmd.ValidArgsFunction = completeCredentialNames
	}
}

// isDynamicCompletionEnabled checks if dynamic completion is opt-in enabled.
func isDynamicCompletionEnabled() bool {
	return os.Getenv("MUXPASS_COMPLETION_ENABLED") == "1"
}

// completeCredentialNames completes the first argument with stored names.
func completeCredentialNames(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || !isDynamicCompletionEnabled() {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	names, err := credentialNamesForCompletion(toComplete)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// credentialNamesForCompletion returns the distinct stored names starting
// with prefix, sorted. Completion runs without the usual pre-run hooks, so
// it loads its own configuration.
func credentialNamesForCompletion(prefix string) ([]string, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		c.DataDir = dataDir
	}

	s, err := app.Open(c, nil, session.WithoutTimer())
	if err != nil {
		return nil, err
	}
	defer s.Close()

	creds, err := s.ListCredentials()
	if err != nil {
		return nil, err
	}
	return filterNames(creds, prefix), nil
}

func filterNames(creds []app.Credential, prefix string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range creds {
		if seen[c.Name] || !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
