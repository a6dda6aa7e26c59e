package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/postalsys/gday/internal/holepunch"
	"github.com/postalsys/gday/internal/peercode"
	"github.com/postalsys/gday/internal/wizard"
)

func newSendCmd() *cobra.Command {
	var server string
	var serverID uint64
	var listenPort uint16
	var insecureTLS bool
	var noWizard bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Generate a peer code and wait for a peer to connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			roomCode, err := randomUint64()
			if err != nil {
				return err
			}
			sharedSecret, err := randomUint64()
			if err != nil {
				return err
			}
			code := peercode.PeerCode{ServerID: serverID, RoomCode: roomCode, SharedSecret: sharedSecret}

			w := wizard.New()
			if !noWizard {
				w.PrintBanner("waiting for a peer to connect")
				w.ShowPeerCode(code)
			} else {
				fmt.Println(code.Encode())
			}

			pc, _, err := runRendezvousAndPunch(ctx, server, listenPort, roomCode, sharedSecret, true, insecureTLS)
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

			return exchangeGreeting(pc, true)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "rendezvous server address (host:port), required")
	cmd.Flags().Uint64Var(&serverID, "server-id", 0, "server ID embedded in the peer code, for the receiver's server directory")
	cmd.Flags().Uint16Var(&listenPort, "port", 0, "local port to advertise and hole-punch from (0 picks any free port)")
	cmd.Flags().BoolVar(&insecureTLS, "insecure-tls", true, "skip TLS certificate verification when dialing the rendezvous server")
	cmd.Flags().BoolVar(&noWizard, "no-wizard", !isInteractive(), "skip interactive prompts, printing the peer code and status to stdout")
	cmd.MarkFlagRequired("server")
	return cmd
}

func randomUint64() (uint64, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(math.MaxUint64))
	if err != nil {
		return 0, fmt.Errorf("gday: generate random value: %w", err)
	}
	var buf [8]byte
	n.FillBytes(buf[:])
	return binary.BigEndian.Uint64(buf[:]), nil
}

func exchangeGreeting(pc *holepunch.PeerConnection, sender bool) error {
	stream, err := openSecureStream(pc)
	if err != nil {
		return err
	}

	greeting := []byte("gday! secure channel established.\n")
	if sender {
		if _, err := stream.Write(greeting); err != nil {
			return fmt.Errorf("gday: write greeting: %w", err)
		}
		if err := stream.Flush(); err != nil {
			return fmt.Errorf("gday: flush greeting: %w", err)
		}
	}
	buf := make([]byte, 4096)
	n, err := stream.Read(buf)
	if err != nil {
		return fmt.Errorf("gday: read greeting: %w", err)
	}
	fmt.Printf("peer says: %s", buf[:n])
	fmt.Printf("exchanged %s over the secure channel\n", humanize.Bytes(uint64(len(greeting)+n)))

	if !sender {
		if _, err := stream.Write(greeting); err != nil {
			return fmt.Errorf("gday: write greeting: %w", err)
		}
	}
	return stream.Close()
}
