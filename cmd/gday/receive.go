package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postalsys/gday/internal/peercode"
	"github.com/postalsys/gday/internal/serverdirectory"
	"github.com/postalsys/gday/internal/wizard"
)

func newReceiveCmd() *cobra.Command {
	var code string
	var server string
	var directoryPath string
	var listenPort uint16
	var insecureTLS bool
	var noWizard bool

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Enter a peer code and connect to the sending peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := wizard.New()

			var pcode peercode.PeerCode
			var err error
			switch {
			case code != "":
				pcode, err = peercode.ParseChecked(code)
			case !noWizard:
				w.PrintBanner("enter the peer code you were given")
				pcode, err = w.PromptPeerCode()
			default:
				return fmt.Errorf("gday: --code is required with --no-wizard")
			}
			if err != nil {
				return err
			}

			addr := server
			if addr == "" {
				if directoryPath == "" {
					return fmt.Errorf("gday: either --server or --directory must be set to resolve server ID %x", pcode.ServerID)
				}
				dir, err := serverdirectory.Load(directoryPath)
				if err != nil {
					return err
				}
				addr, err = dir.Lookup(pcode.ServerID)
				if err != nil {
					return err
				}
			}

			pc, _, err := runRendezvousAndPunch(ctx, addr, listenPort, pcode.RoomCode, pcode.SharedSecret, false, insecureTLS)
			if err != nil {
				return err
			}
			defer pc.Conn.Close()

			summary := fmt.Sprintf("connected to peer at %s", pc.Conn.RemoteAddr())
			if !noWizard {
				proceed, err := w.ConfirmConnection(summary)
				if err != nil {
					return err
				}
				if !proceed {
					return fmt.Errorf("gday: connection declined")
				}
			} else {
				fmt.Println(summary)
			}

			return exchangeGreeting(pc, false)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "peer code (prompted interactively if omitted)")
	cmd.Flags().StringVar(&server, "server", "", "rendezvous server address, overriding the server directory lookup")
	cmd.Flags().StringVar(&directoryPath, "directory", "", "path to a YAML server_id -> address directory")
	cmd.Flags().Uint16Var(&listenPort, "port", 0, "local port to advertise and hole-punch from (0 picks any free port)")
	cmd.Flags().BoolVar(&insecureTLS, "insecure-tls", true, "skip TLS certificate verification when dialing the rendezvous server")
	cmd.Flags().BoolVar(&noWizard, "no-wizard", !isInteractive(), "skip interactive prompts, requiring --code")
	return cmd
}
