package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/lockfile"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for alivelock.

To load completions:

Bash:
  $ source <(alivelock completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ alivelock completion bash > /etc/bash_completion.d/alivelock
  # macOS:
  $ alivelock completion bash > $(brew --prefix)/etc/bash_completion.d/alivelock

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ alivelock completion zsh > "${fpath[1]}/_alivelock"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ alivelock completion fish | source

  # To load completions for each session, execute once:
  $ alivelock completion fish > ~/.config/fish/completions/alivelock.fish

PowerShell:
  PS> alivelock completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> alivelock completion powershell > alivelock.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(cmd.OutOrStdout(), true)
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
		return nil
	},
}

// completeLockName completes lock names from the lock files currently in
// the runtime directory.
func completeLockName(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 && cmd.Name() != "wait" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	markers, err := lockfile.Scan(lockfile.DefaultPattern)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for _, m := range markers {
		if strings.HasPrefix(m.Name, toComplete) {
			names = append(names, filepath.FromSlash(m.Name))
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	holdCmd.ValidArgsFunction = completeLockName
	stopCmd.ValidArgsFunction = completeLockName
	waitCmd.ValidArgsFunction = completeLockName
	rootCmd.AddCommand(completionCmd)
}
