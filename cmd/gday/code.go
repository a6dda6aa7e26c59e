package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postalsys/gday/internal/peercode"
)

func newCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Encode or decode a peer code",
	}
	cmd.AddCommand(newCodeGenerateCmd(), newCodeParseCmd())
	return cmd
}

func newCodeGenerateCmd() *cobra.Command {
	var serverID, roomCode, sharedSecret uint64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Encode (server-id, room-code, shared-secret) as a peer code",
		RunE: func(cmd *cobra.Command, args []string) error {
			code := peercode.PeerCode{ServerID: serverID, RoomCode: roomCode, SharedSecret: sharedSecret}
			fmt.Println(code.Encode())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&serverID, "server-id", 0, "server ID")
	cmd.Flags().Uint64Var(&roomCode, "room-code", 0, "room code")
	cmd.Flags().Uint64Var(&sharedSecret, "shared-secret", 0, "shared secret")
	return cmd
}

func newCodeParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [code]",
		Short: "Decode and validate a peer code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pcode, err := peercode.ParseChecked(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("server_id=%x room_code=%x shared_secret=%x\n", pcode.ServerID, pcode.RoomCode, pcode.SharedSecret)
			return nil
		},
	}
}
