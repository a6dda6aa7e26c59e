package holepunch

import (
	"net"
	"testing"
)

func TestNegotiateNonce_BothSidesAgree(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	type result struct {
		nonce [7]byte
		err   error
	}
	results := make(chan result, 2)
	go func() {
		n, err := NegotiateNonce(a)
		results <- result{n, err}
	}()
	go func() {
		n, err := NegotiateNonce(b)
		results <- result{n, err}
	}()

	r1 := <-results
	r2 := <-results
	if r1.err != nil {
		t.Fatalf("NegotiateNonce: %v", r1.err)
	}
	if r2.err != nil {
		t.Fatalf("NegotiateNonce: %v", r2.err)
	}
	if r1.nonce != r2.nonce {
		t.Fatalf("nonces differ: %x vs %x", r1.nonce, r2.nonce)
	}
}
