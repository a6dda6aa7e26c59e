// Command gday is the NAT-traversal + secure-channel reference CLI:
// it runs the rendezvous server, drives a send/receive hole-punch
// demonstration, and encodes/decodes peer codes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gday",
		Short: "NAT traversal and secure peer-to-peer channel setup",
	}

	cmd.AddCommand(
		newServeCmd(),
		newSendCmd(),
		newReceiveCmd(),
		newCodeCmd(),
	)
	return cmd
}
