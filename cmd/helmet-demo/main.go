package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦ ╦┌─┐┬  ┌┬┐┌─┐┌┬┐
  ╠═╣├┤ │  │││├┤  │
  ╩ ╩└─┘┴─┘┴ ┴└─┘ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "helmet-demo",
		Short: "Live document head reconciliation demo",
		Long: `Helmet keeps the browser <head> in sync with server-side components.

The demo server mounts a rotating set of head declarations into each
session and streams the resulting insert and remove operations to the
browser over a binary WebSocket protocol. Features on display:

  • Reference-counted deduplication of identical declarations
  • Fingerprint-stable attribute ordering
  • Session resume with full head resync
  • Asset manifest rewriting for fingerprinted files
  • Prometheus metrics for every reconcile pass`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		serveCmd(),
		assetsCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Helmet ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
