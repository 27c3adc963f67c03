package cert

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
)

// Pinning errors.
var (
	ErrNoPeerCertificate   = errors.New("no peer certificate")
	ErrCertificateMismatch = errors.New("server certificate does not match pinned certificate")
)

// PinStore persists the pinned server certificate as PEM.
// record.ServiceConfig satisfies it.
type PinStore interface {
	ServerCertificate() []byte
	SetServerCertificate(pemData []byte)
}

// Pinner implements trust-on-first-use certificate pinning.
//
// With nothing pinned, the first leaf certificate presented is accepted and
// held as a candidate until Commit persists it. Once pinned, a handshake
// succeeds only if the presented leaf is byte-for-byte the pinned one.
type Pinner struct {
	store PinStore

	mu        sync.Mutex
	candidate []byte
	mismatch  bool
}

// NewPinner creates a pinner backed by store.
func NewPinner(store PinStore) *Pinner {
	return &Pinner{store: store}
}

// VerifyConnection is a tls.Config.VerifyConnection callback.
func (p *Pinner) VerifyConnection(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return ErrNoPeerCertificate
	}
	return p.verifyDER(cs.PeerCertificates[0].Raw)
}

// VerifyPeerCertificate is a tls.Config.VerifyPeerCertificate callback for
// callers that prefer the raw form.
func (p *Pinner) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return ErrNoPeerCertificate
	}
	return p.verifyDER(rawCerts[0])
}

func (p *Pinner) verifyDER(der []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pinnedPEM := p.store.ServerCertificate()
	if len(pinnedPEM) == 0 {
		p.candidate = append([]byte(nil), der...)
		p.mismatch = false
		return nil
	}

	pinned, err := DecodeDERPEM(pinnedPEM)
	if err != nil {
		p.mismatch = true
		return fmt.Errorf("%w: stored pin unreadable: %v", ErrCertificateMismatch, err)
	}
	if !bytes.Equal(pinned, der) {
		p.mismatch = true
		return ErrCertificateMismatch
	}
	p.mismatch = false
	return nil
}

// Commit persists the candidate certificate seen on the first handshake.
// It returns true if a new pin was written.
func (p *Pinner) Commit() bool {
	p.mu.Lock()
	candidate := p.candidate
	p.candidate = nil
	p.mu.Unlock()

	if candidate == nil || len(p.store.ServerCertificate()) > 0 {
		return false
	}
	p.store.SetServerCertificate(EncodeDERPEM(candidate))
	return true
}

// Begin resets per-attempt state. Call it before each dial so a failure
// that never reaches the handshake is not reported as a pin mismatch.
func (p *Pinner) Begin() {
	p.mu.Lock()
	p.candidate = nil
	p.mismatch = false
	p.mu.Unlock()
}

// Discard drops an uncommitted candidate after a failed connection.
func (p *Pinner) Discard() {
	p.mu.Lock()
	p.candidate = nil
	p.mu.Unlock()
}

// Mismatched reports whether verification failed on the pin since the last
// Begin.
func (p *Pinner) Mismatched() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mismatch
}

// Pinned reports whether a certificate is pinned.
func (p *Pinner) Pinned() bool {
	return len(p.store.ServerCertificate()) > 0
}

// ClientTLSConfig returns a TLS client configuration that trusts exactly the
// pinned certificate. Chain validation is replaced by the pin check since
// media devices present self-signed certificates.
func (p *Pinner) ClientTLSConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true, //nolint:gosec // replaced by VerifyConnection pin check
		VerifyConnection:   p.VerifyConnection,
		MinVersion:         tls.VersionTLS12,
	}
}
