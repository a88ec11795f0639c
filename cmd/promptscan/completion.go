package promptscan

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
		Example: `
# Bash
promptscan completion bash > /etc/bash_completion.d/promptscan

# Zsh
promptscan completion zsh > "${fpath[1]}/_promptscan"

# Fish
promptscan completion fish > ~/.config/fish/completions/promptscan.fish

# PowerShell
promptscan completion powershell > $PROFILE\promptscan.ps1
`,
	}
	rootCmd.AddCommand(cmd)
}
