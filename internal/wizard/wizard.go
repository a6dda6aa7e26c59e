// Package wizard provides the small interactive terminal flow gday's
// send/receive commands use to collect and confirm a peer code before
// handing off to the rendezvous/hole-punch pipeline.
package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/postalsys/gday/internal/peercode"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().Faint(true)
)

// Wizard drives the interactive prompts for one send/receive invocation.
type Wizard struct {
	theme *huh.Theme
}

// New creates a Wizard using huh's default charm theme.
func New() *Wizard {
	return &Wizard{theme: huh.ThemeCharm()}
}

// PrintBanner prints the gday banner above the form sequence.
func (w *Wizard) PrintBanner(subtitle string) {
	fmt.Println(bannerStyle.Render("gday"))
	if subtitle != "" {
		fmt.Println(dimStyle.Render(subtitle))
	}
	fmt.Println()
}

// PromptMode asks the operator whether this invocation is sending or
// receiving, returning "send" or "receive".
func (w *Wizard) PromptMode() (string, error) {
	var mode string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What do you want to do?").
				Options(
					huh.NewOption("Send — generate a peer code and wait for a peer", "send"),
					huh.NewOption("Receive — enter a peer code to connect", "receive"),
				).
				Value(&mode),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("wizard: prompt mode: %w", err)
	}
	return mode, nil
}

// PromptPeerCode asks the operator to type in a peer code, validating
// it with peercode.ParseChecked before accepting the form — a typed
// code keeps its checksum segment so a transcription slip is caught
// here instead of surfacing as a confusing rendezvous error later.
func (w *Wizard) PromptPeerCode() (peercode.PeerCode, error) {
	var raw string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Peer code").
				Description("e.g. 1B.13A.F.3").
				Value(&raw).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("peer code is required")
					}
					_, err := peercode.ParseChecked(s)
					return err
				}),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		return peercode.PeerCode{}, fmt.Errorf("wizard: prompt peer code: %w", err)
	}
	return peercode.ParseChecked(raw)
}

// ShowPeerCode renders the generated peer code prominently so the
// operator can read it out or copy it to the peer.
func (w *Wizard) ShowPeerCode(code peercode.PeerCode) {
	fmt.Println(headerStyle.Render("Share this code with your peer:"))
	fmt.Println(bannerStyle.Render(code.Encode()))
	fmt.Println()
}

// ConfirmConnection shows a human-readable summary of the negotiated
// connection (e.g. the verified peer address) and asks the operator to
// confirm before the secure stream is used.
func (w *Wizard) ConfirmConnection(summary string) (bool, error) {
	ok := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Connection established").
				Description(summary),
			huh.NewConfirm().
				Title("Proceed?").
				Value(&ok),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("wizard: confirm connection: %w", err)
	}
	return ok, nil
}
