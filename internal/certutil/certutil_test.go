package certutil

import "testing"

func TestGenerateSelfSignedCert_RoundTrip(t *testing.T) {
	gc, err := GenerateSelfSignedCert(DefaultServerOptions("rendezvous.local"))
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}

	if _, err := gc.TLSCertificate(); err != nil {
		t.Fatalf("TLSCertificate: %v", err)
	}

	parsed, err := LoadCert(gc.CertPEM)
	if err != nil {
		t.Fatalf("LoadCert: %v", err)
	}
	if parsed.Subject.CommonName != "rendezvous.local" {
		t.Errorf("CommonName = %q, want rendezvous.local", parsed.Subject.CommonName)
	}
	if IsExpired(parsed) {
		t.Error("freshly generated cert reported as expired")
	}
}

func TestFingerprint_StableForSameBytes(t *testing.T) {
	gc, err := GenerateSelfSignedCert(DefaultServerOptions("a"))
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}

	fp1 := gc.Fingerprint()
	fp2, err := FingerprintFromPEM(gc.CertPEM)
	if err != nil {
		t.Fatalf("FingerprintFromPEM: %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("fingerprints differ: %s vs %s", fp1, fp2)
	}
}

func TestGenerateSelfSignedCert_DefaultValidity(t *testing.T) {
	gc, err := GenerateSelfSignedCert(CertOptions{CommonName: "no-valid-for"})
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}
	if gc.Certificate.NotAfter.Before(gc.Certificate.NotBefore) {
		t.Error("NotAfter before NotBefore with default validity")
	}
}
