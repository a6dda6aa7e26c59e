package serverdirectory

import (
	"errors"
	"testing"
)

const sampleYAML = `
servers:
  "1B": rendezvous.example.com:2311
  "2C": rendezvous-eu.example.com:2311
`

func TestParse_LookupKnownServer(t *testing.T) {
	d, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	addr, err := d.Lookup(0x1B)
	if err != nil {
		t.Fatalf("Lookup(0x1B): %v", err)
	}
	if addr != "rendezvous.example.com:2311" {
		t.Errorf("addr = %q, want rendezvous.example.com:2311", addr)
	}
}

func TestParse_LookupUnknownServer(t *testing.T) {
	d, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, err := d.Lookup(0xFF); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("err = %v, want ErrServerNotFound", err)
	}
}

func TestParse_RejectsInvalidServerID(t *testing.T) {
	_, err := Parse([]byte("servers:\n  \"not-hex\": example.com:2311\n"))
	if err == nil {
		t.Fatal("expected error for non-hex server ID")
	}
}
