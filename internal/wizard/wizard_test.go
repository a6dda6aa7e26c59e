package wizard

import (
	"testing"

	"github.com/postalsys/gday/internal/peercode"
)

func TestNew_ReturnsThemedWizard(t *testing.T) {
	w := New()
	if w == nil {
		t.Fatal("New() returned nil")
	}
	if w.theme == nil {
		t.Error("New() wizard has no theme set")
	}
}

func TestPrintBanner_DoesNotPanic(t *testing.T) {
	w := New()
	w.PrintBanner("")
	w.PrintBanner("waiting for a peer to connect")
}

func TestShowPeerCode_DoesNotPanic(t *testing.T) {
	w := New()
	code := peercode.PeerCode{ServerID: 27, RoomCode: 314, SharedSecret: 15}
	w.ShowPeerCode(code)
}
