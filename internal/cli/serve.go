package cli

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BurgessTheGamer/Llamux/internal/engine"
	"github.com/BurgessTheGamer/Llamux/internal/procfs"
)

// newServeCmd builds the "serve" command: load a gguf model, start the
// single worker goroutine, and drive the procfs facade from
// stdin lines until EOF or SIGINT/SIGTERM. Grounded on cmd_serve.go's
// load-then-listen shape, narrowed from an HTTP listener down to a line
// protocol since this core has no network transport of its own.
func newServeCmd() *cobra.Command {
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "serve <model.gguf>",
		Short: "Load a model and serve status/stats/prompt commands over stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			le, err := loadEngine(args[0], maxTokens)
			if err != nil {
				return err
			}
			defer le.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go le.Run(ctx)

			var snapshot procfs.StatsSnapshot
			repl(ctx, cmd, le.Engine, &snapshot)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 256, "maximum tokens to generate per prompt")
	appendEnvDocs(cmd, "LLAMUX_CONTEXT_LENGTH", "LLAMUX_DEBUG")

	return cmd
}

// repl implements the line protocol: "status", "stats", "prompt <text>",
// and "quit", reading from stdin until EOF or ctx is cancelled.
func repl(ctx context.Context, cmd *cobra.Command, e *engine.Engine, snapshot *procfs.StatsSnapshot) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		verb, rest, _ := strings.Cut(line, " ")

		switch verb {
		case "":
			continue
		case "status":
			cmd.Print(procfs.Status(e))
		case "stats":
			cmd.Print(snapshot.Render())
		case "prompt":
			handlePrompt(ctx, cmd, e, snapshot, rest)
		case "quit", "exit":
			return
		default:
			cmd.Printf("unknown command %q\n", verb)
		}
	}
}

func handlePrompt(ctx context.Context, cmd *cobra.Command, e *engine.Engine, snapshot *procfs.StatsSnapshot, prompt string) {
	id, err := e.Submit(prompt)
	if err != nil {
		cmd.Printf("error: %v\n", err)
		return
	}
	resp, stats, err := e.Await(ctx, id, 5*time.Minute)
	snapshot.Record(stats, e.State.Arena.Len(), err)
	if err != nil {
		cmd.Printf("error: %v\n", err)
		return
	}
	cmd.Println(resp)
}
