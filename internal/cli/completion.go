package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ercanvas/pkg/render"
	"github.com/matzehuels/ercanvas/pkg/tutor"
)

var dictionaryFormats = []string{"table", "csv", "md"}

func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ercanvas.

Completions cover subcommands, model files (*.json), export and dictionary
formats, --difficulty levels and SQL dialects.

  bash:       source <(ercanvas completion bash)
  zsh:        ercanvas completion zsh > "${fpath[1]}/_ercanvas"
  fish:       ercanvas completion fish | source
  powershell: ercanvas completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// registerCompletions attaches value completions to the domain flags and
// restricts model-file arguments to JSON files.
func registerCompletions(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		var formats []string
		switch cmd.Name() {
		case "export":
			formats = stringsOf(render.Formats())
		case "dictionary":
			formats = dictionaryFormats
		}
		if formats != nil {
			_ = cmd.RegisterFlagCompletionFunc("format", completeList(formats))
		}
		if cmd.Flags().Lookup("difficulty") != nil {
			_ = cmd.RegisterFlagCompletionFunc("difficulty", cobra.FixedCompletions(stringsOf(tutor.Difficulties()), cobra.ShellCompDirectiveNoFileComp))
		}
		if cmd.Flags().Lookup("dialect") != nil {
			_ = cmd.RegisterFlagCompletionFunc("dialect", cobra.FixedCompletions(stringsOf(tutor.Dialects()), cobra.ShellCompDirectiveNoFileComp))
		}
		if cmd.Flags().Lookup("model") != nil {
			_ = cmd.RegisterFlagCompletionFunc("model", completeModelFile)
		}
		if takesModelFile(cmd.Name()) && cmd.ValidArgsFunction == nil {
			cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
				if len(args) > 0 {
					return nil, cobra.ShellCompDirectiveNoFileComp
				}
				return completeModelFile(cmd, args, "")
			}
		}
	}
}

func takesModelFile(name string) bool {
	switch name {
	case "evaluate", "sql", "hint", "export", "dictionary", "edit":
		return true
	}
	return false
}

func completeModelFile(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{"json"}, cobra.ShellCompDirectiveFilterFileExt
}

// completeList completes one element of a comma-separated value such as
// "-f svg,pn", keeping the elements already typed.
func completeList(choices []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		prefix, partial := "", toComplete
		if i := strings.LastIndex(toComplete, ","); i >= 0 {
			prefix, partial = toComplete[:i+1], toComplete[i+1:]
		}
		typed := map[string]bool{}
		for _, t := range strings.Split(prefix, ",") {
			typed[t] = true
		}
		var out []string
		for _, c := range choices {
			if !typed[c] && strings.HasPrefix(c, partial) {
				out = append(out, prefix+c)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	}
}

func stringsOf[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
