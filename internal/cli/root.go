package cli

import (
	"github.com/spf13/cobra"

	"github.com/BurgessTheGamer/Llamux/envconfig"
)

// appendEnvDocs appends an Environment Variables section to cmd's usage
// template, appending a usage section listing the variables that affect a given command.
func appendEnvDocs(cmd *cobra.Command, names ...string) {
	all := envconfig.AsMap()
	envUsage := "\nEnvironment Variables:\n"
	for _, name := range names {
		e, ok := all[name]
		if !ok {
			continue
		}
		envUsage += "  " + e.Name + "\t" + e.Description + "\n"
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewRootCmd builds the llamux command tree: run (one-shot prompt) and
// serve (worker loop behind the procfs facade).
func NewRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	root := &cobra.Command{
		Use:           "llamux",
		Short:         "A from-scratch GGUF transformer inference core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())

	return root
}
