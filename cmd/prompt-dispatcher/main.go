// cmd/prompt-dispatcher/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "prompt-dispatcher",
	Short: "Render fixed prompt strategies, send them to a model and capture the replies",
	Long: `prompt-dispatcher composes one of three fixed prompting strategies
(zero_shot, few_shot, chain_of_thought) with a dataset reference, sends the
text to a text-generation service and stores the reply unmodified as
<strategy>_response_<n>.md (plus any configured database sinks).

It can also run as a Zeebe job worker for the "dispatch-prompt" task type.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newTemplatesCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newDispatchCmd())
	rootCmd.AddCommand(newRunAllCmd())
	rootCmd.AddCommand(newWorkerCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
