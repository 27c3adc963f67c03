package record

import (
	"net/url"
	"sync"
	"time"
)

// ServiceDescription describes one discovered endpoint of a physical device.
// It is created on first announcement, refreshed on re-announcement and
// dropped when the announcement expires.
type ServiceDescription struct {
	// IPAddress is the host address the endpoint was seen at.
	IPAddress string `json:"ipAddress"`

	// Port is the control port, 0 when the protocol implies one.
	Port int `json:"port,omitempty"`

	// ServiceID names the protocol that handles this endpoint (e.g. "webOS TV").
	ServiceID string `json:"serviceId"`

	// Filter is the discovery target that matched (SSDP ST or mDNS service type).
	Filter string `json:"filter,omitempty"`

	// UUID identifies the endpoint, extracted from the announcement.
	UUID string `json:"uuid"`

	FriendlyName string `json:"friendlyName,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	ModelName    string `json:"modelName,omitempty"`
	ModelNumber  string `json:"modelNumber,omitempty"`

	// Location is the URL of the description document, if any.
	Location string `json:"location,omitempty"`

	// ServiceList holds the service types listed in the description document.
	ServiceList []string `json:"serviceList,omitempty"`

	// LastDetection is when the endpoint last announced itself.
	LastDetection time.Time `json:"lastDetection"`

	// ResponseHeaders are the raw headers of the last announcement.
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty"`

	// Metadata carries protocol-specific values (TXT records, version strings).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the description.
func (d ServiceDescription) Clone() ServiceDescription {
	out := d
	if d.ServiceList != nil {
		out.ServiceList = append([]string(nil), d.ServiceList...)
	}
	if d.ResponseHeaders != nil {
		out.ResponseHeaders = make(map[string][]string, len(d.ResponseHeaders))
		for k, v := range d.ResponseHeaders {
			out.ResponseHeaders[k] = append([]string(nil), v...)
		}
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Host returns the host part of Location, falling back to IPAddress.
func (d ServiceDescription) Host() string {
	if d.Location != "" {
		if u, err := url.Parse(d.Location); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return d.IPAddress
}

// HasService reports whether the description lists the given service type.
func (d ServiceDescription) HasService(serviceType string) bool {
	for _, s := range d.ServiceList {
		if s == serviceType {
			return true
		}
	}
	return false
}

// ServiceConfig holds per-service credentials that outlive a connection.
// It is safe for concurrent use.
type ServiceConfig struct {
	mu sync.RWMutex

	serviceUUID       string
	pairingKey        string
	clientKey         string
	serverCertificate []byte
	lastDetection     time.Time
	connected         bool

	onChange func(*ServiceConfig)
}

// NewServiceConfig creates an empty config for the given service UUID.
func NewServiceConfig(serviceUUID string) *ServiceConfig {
	return &ServiceConfig{serviceUUID: serviceUUID}
}

// ServiceUUID returns the UUID of the service this config belongs to.
func (c *ServiceConfig) ServiceUUID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serviceUUID
}

// PairingKey returns the last pairing key entered by the user.
func (c *ServiceConfig) PairingKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pairingKey
}

// SetPairingKey stores the pairing key and notifies the change handler.
func (c *ServiceConfig) SetPairingKey(key string) {
	c.update(func() { c.pairingKey = key })
}

// ClientKey returns the key issued by the device after registration.
func (c *ServiceConfig) ClientKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientKey
}

// SetClientKey stores the client key and notifies the change handler.
func (c *ServiceConfig) SetClientKey(key string) {
	c.update(func() { c.clientKey = key })
}

// ServerCertificate returns the PEM of the pinned server certificate, or nil.
func (c *ServiceConfig) ServerCertificate() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.serverCertificate == nil {
		return nil
	}
	return append([]byte(nil), c.serverCertificate...)
}

// SetServerCertificate pins a server certificate (PEM).
func (c *ServiceConfig) SetServerCertificate(pemData []byte) {
	c.update(func() { c.serverCertificate = append([]byte(nil), pemData...) })
}

// LastDetection returns when the owning service was last seen.
func (c *ServiceConfig) LastDetection() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastDetection
}

// SetLastDetection records when the owning service was last seen.
// It does not fire the change handler.
func (c *ServiceConfig) SetLastDetection(t time.Time) {
	c.mu.Lock()
	c.lastDetection = t
	c.mu.Unlock()
}

// Connected reports whether the owning service currently has a live session.
func (c *ServiceConfig) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetConnected records the session state. It is not persisted and does not
// fire the change handler.
func (c *ServiceConfig) SetConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

// OnChange registers a handler invoked after any credential changes.
func (c *ServiceConfig) OnChange(fn func(*ServiceConfig)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Merge copies credentials from other that are missing in c.
// Credentials already present in c win.
func (c *ServiceConfig) Merge(other *ServiceConfig) {
	if other == nil || other == c {
		return
	}
	o := other.Snapshot()
	c.mu.Lock()
	if c.pairingKey == "" {
		c.pairingKey = o.PairingKey
	}
	if c.clientKey == "" {
		c.clientKey = o.ClientKey
	}
	if c.serverCertificate == nil && o.ServerCertificate != nil {
		c.serverCertificate = append([]byte(nil), o.ServerCertificate...)
	}
	if c.serviceUUID == "" {
		c.serviceUUID = o.ServiceUUID
	}
	c.mu.Unlock()
}

// Snapshot returns a serializable copy of the config.
func (c *ServiceConfig) Snapshot() ConfigData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data := ConfigData{
		ServiceUUID:   c.serviceUUID,
		PairingKey:    c.pairingKey,
		ClientKey:     c.clientKey,
		LastDetection: c.lastDetection,
	}
	if c.serverCertificate != nil {
		data.ServerCertificate = append([]byte(nil), c.serverCertificate...)
	}
	return data
}

// Clone returns an independent copy without the change handler.
func (c *ServiceConfig) Clone() *ServiceConfig {
	return c.Snapshot().Config()
}

func (c *ServiceConfig) update(fn func()) {
	c.mu.Lock()
	fn()
	handler := c.onChange
	c.mu.Unlock()

	if handler != nil {
		handler(c)
	}
}

// ConfigData is the persisted form of a ServiceConfig.
type ConfigData struct {
	ServiceUUID       string    `json:"serviceUUID"`
	PairingKey        string    `json:"pairingKey,omitempty"`
	ClientKey         string    `json:"clientKey,omitempty"`
	ServerCertificate []byte    `json:"serverCertificate,omitempty"`
	LastDetection     time.Time `json:"lastDetection,omitempty"`
}

// Config rebuilds a ServiceConfig from its persisted form.
func (d ConfigData) Config() *ServiceConfig {
	c := &ServiceConfig{
		serviceUUID:   d.ServiceUUID,
		pairingKey:    d.PairingKey,
		clientKey:     d.ClientKey,
		lastDetection: d.LastDetection,
	}
	if d.ServerCertificate != nil {
		c.serverCertificate = append([]byte(nil), d.ServerCertificate...)
	}
	return c
}

// HasCredentials reports whether any credential is set.
func (d ConfigData) HasCredentials() bool {
	return d.ClientKey != "" || d.PairingKey != "" || len(d.ServerCertificate) > 0
}
