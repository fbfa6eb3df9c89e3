package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newRunCmd builds the "run" command: load a gguf model and generate a
// completion for a single prompt, printing the result and exiting.
// One-shot completion rather than an interactive chat loop, since this core
// has no network server layer to keep a session open against.
func newRunCmd() *cobra.Command {
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "run <model.gguf> <prompt...>",
		Short: "Load a model and generate a completion for a single prompt",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			prompt := strings.Join(args[1:], " ")

			le, err := loadEngine(path, maxTokens)
			if err != nil {
				return err
			}
			defer le.Close()

			response, stats, err := le.State.Generate(cmd.Context(), prompt, maxTokens)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			cmd.Println(response)
			cmd.Printf("(%d tokens, %.1f tok/s)\n", stats.GeneratedTokens, stats.TokensPerSecond())
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 256, "maximum tokens to generate")
	appendEnvDocs(cmd, "LLAMUX_CONTEXT_LENGTH", "LLAMUX_TEMPERATURE", "LLAMUX_TOP_K", "LLAMUX_TOP_P", "LLAMUX_ALLOW_ZERO_FILL")

	return cmd
}
