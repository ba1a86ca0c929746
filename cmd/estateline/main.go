package main

import (
	"os"

	"github.com/spf13/cobra"
)

const rootLongDesc = `Estateline is a phone-based real estate assistant.

It bridges Retell's audio websocket to a tool-calling LLM, handles the
Twilio voice webhook for inbound calls, places outbound calls, and
answers SMS.

Run the server with:
  estateline serve`

const rootShortDesc = "Estateline - Real Estate Voice Assistant"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estateline",
		Short: rootShortDesc,
		Long:  rootLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
