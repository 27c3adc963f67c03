package cert

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"sync"
	"testing"
)

type memPinStore struct {
	mu  sync.Mutex
	pem []byte
}

func (s *memPinStore) ServerCertificate() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pem
}

func (s *memPinStore) SetServerCertificate(pemData []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pem = pemData
}

func mustGenerate(t *testing.T, cn string) tls.Certificate {
	t.Helper()
	c, err := GenerateSelfSigned(cn, "127.0.0.1", "localhost")
	if err != nil {
		t.Fatalf("GenerateSelfSigned() error = %v", err)
	}
	return c
}

func connState(c tls.Certificate) tls.ConnectionState {
	return tls.ConnectionState{PeerCertificates: []*x509.Certificate{c.Leaf}}
}

func TestGenerateSelfSigned(t *testing.T) {
	c := mustGenerate(t, "tv")
	if c.Leaf == nil {
		t.Fatal("Leaf is nil")
	}
	if c.Leaf.Subject.CommonName != "tv" {
		t.Errorf("CommonName = %q", c.Leaf.Subject.CommonName)
	}
	if len(c.Leaf.IPAddresses) != 1 || len(c.Leaf.DNSNames) != 1 {
		t.Errorf("SANs = %v %v", c.Leaf.IPAddresses, c.Leaf.DNSNames)
	}
}

func TestPEMRoundTrip(t *testing.T) {
	c := mustGenerate(t, "tv")

	data := EncodeCertPEM(c.Leaf)
	back, err := DecodeCertPEM(data)
	if err != nil {
		t.Fatalf("DecodeCertPEM() error = %v", err)
	}
	if !bytes.Equal(back.Raw, c.Leaf.Raw) {
		t.Error("decoded certificate differs")
	}

	if _, err := DecodeCertPEM([]byte("garbage")); !errors.Is(err, ErrInvalidPEM) {
		t.Errorf("DecodeCertPEM(garbage) error = %v", err)
	}
}

func TestPinner(t *testing.T) {
	c1 := mustGenerate(t, "tv-1")
	c2 := mustGenerate(t, "tv-2")

	t.Run("FirstUseIsAcceptedAndCommitted", func(t *testing.T) {
		store := &memPinStore{}
		p := NewPinner(store)

		if err := p.VerifyConnection(connState(c1)); err != nil {
			t.Fatalf("VerifyConnection() error = %v", err)
		}
		if p.Pinned() {
			t.Fatal("pinned before Commit")
		}
		if !p.Commit() {
			t.Fatal("Commit() = false")
		}
		if !p.Pinned() {
			t.Fatal("not pinned after Commit")
		}
		if p.Commit() {
			t.Error("second Commit() wrote again")
		}
	})

	t.Run("SameCertificateAccepted", func(t *testing.T) {
		store := &memPinStore{pem: EncodeCertPEM(c1.Leaf)}
		p := NewPinner(store)
		if err := p.VerifyConnection(connState(c1)); err != nil {
			t.Errorf("VerifyConnection() error = %v", err)
		}
		if p.Mismatched() {
			t.Error("Mismatched() = true")
		}
	})

	t.Run("DifferentCertificateRejected", func(t *testing.T) {
		store := &memPinStore{pem: EncodeCertPEM(c1.Leaf)}
		p := NewPinner(store)
		err := p.VerifyConnection(connState(c2))
		if !errors.Is(err, ErrCertificateMismatch) {
			t.Fatalf("VerifyConnection() error = %v, want ErrCertificateMismatch", err)
		}
		if !p.Mismatched() {
			t.Error("Mismatched() = false")
		}
		if !bytes.Equal(store.ServerCertificate(), EncodeCertPEM(c1.Leaf)) {
			t.Error("pin was overwritten")
		}
	})

	t.Run("BeginClearsMismatch", func(t *testing.T) {
		store := &memPinStore{pem: EncodeCertPEM(c1.Leaf)}
		p := NewPinner(store)
		_ = p.VerifyConnection(connState(c2))
		if !p.Mismatched() {
			t.Fatal("Mismatched() = false")
		}
		p.Begin()
		if p.Mismatched() {
			t.Error("Mismatched() = true after Begin")
		}
	})

	t.Run("DiscardDropsCandidate", func(t *testing.T) {
		store := &memPinStore{}
		p := NewPinner(store)
		_ = p.VerifyPeerCertificate([][]byte{c1.Leaf.Raw}, nil)
		p.Discard()
		if p.Commit() {
			t.Error("Commit() after Discard wrote a pin")
		}
	})

	t.Run("NoPeerCertificate", func(t *testing.T) {
		p := NewPinner(&memPinStore{})
		if err := p.VerifyConnection(tls.ConnectionState{}); !errors.Is(err, ErrNoPeerCertificate) {
			t.Errorf("VerifyConnection() error = %v", err)
		}
	})
}
