package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "authctl",
		Short: "Drive an authbridge session from the terminal",
		Long: `authctl runs the same session controller the bridge uses, against a
durable token store on this machine. Tokens persist between invocations
under the chosen device id.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(rootCmd)

	rootCmd.AddCommand(
		loginCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
	)
	return rootCmd
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
