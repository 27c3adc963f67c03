package wire

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pairing types a client may ask for.
const (
	PairingTypePrompt   = "PROMPT"
	PairingTypePIN      = "PIN"
	PairingTypeCombined = "COMBINED"
)

// Manifest declares the permissions a client requests when registering.
type Manifest struct {
	ManifestVersion int                 `json:"manifestVersion" yaml:"manifestVersion"`
	AppVersion      string              `json:"appVersion" yaml:"appVersion"`
	Signed          SignedManifest      `json:"signed" yaml:"signed"`
	Permissions     []string            `json:"permissions" yaml:"permissions"`
	Signatures      []ManifestSignature `json:"signatures" yaml:"signatures"`
}

// SignedManifest is the signed part of the manifest.
type SignedManifest struct {
	Created              string            `json:"created" yaml:"created"`
	AppID                string            `json:"appId" yaml:"appId"`
	VendorID             string            `json:"vendorId" yaml:"vendorId"`
	LocalizedAppNames    map[string]string `json:"localizedAppNames,omitempty" yaml:"localizedAppNames,omitempty"`
	LocalizedVendorNames map[string]string `json:"localizedVendorNames,omitempty" yaml:"localizedVendorNames,omitempty"`
	Permissions          []string          `json:"permissions" yaml:"permissions"`
	Serial               string            `json:"serial" yaml:"serial"`
}

// ManifestSignature is one manifest signature entry.
type ManifestSignature struct {
	SignatureVersion int    `json:"signatureVersion" yaml:"signatureVersion"`
	Signature        string `json:"signature" yaml:"signature"`
}

// DefaultPermissions are requested unless a manifest overrides them.
var DefaultPermissions = []string{
	"LAUNCH",
	"LAUNCH_WEBAPP",
	"APP_TO_APP",
	"CLOSE",
	"TEST_OPEN",
	"TEST_PROTECTED",
	"CONTROL_AUDIO",
	"CONTROL_DISPLAY",
	"CONTROL_INPUT_JOYSTICK",
	"CONTROL_INPUT_MEDIA_RECORDING",
	"CONTROL_INPUT_MEDIA_PLAYBACK",
	"CONTROL_INPUT_TV",
	"CONTROL_POWER",
	"READ_APP_STATUS",
	"READ_CURRENT_CHANNEL",
	"READ_INPUT_DEVICE_LIST",
	"READ_NETWORK_STATE",
	"READ_RUNNING_APPS",
	"READ_TV_CHANNEL_LIST",
	"WRITE_NOTIFICATION_TOAST",
	"READ_POWER_STATE",
	"READ_COUNTRY_INFO",
}

// DefaultManifest returns the manifest sent when none is configured.
func DefaultManifest() Manifest {
	perms := append([]string(nil), DefaultPermissions...)
	return Manifest{
		ManifestVersion: 1,
		AppVersion:      "1.1",
		Signed: SignedManifest{
			Created:     "20260101",
			AppID:       "com.rendercast.client",
			VendorID:    "com.rendercast",
			Permissions: perms,
			Serial:      "2f930e2d2cfe083771f68e4fe7bb07",
			LocalizedAppNames: map[string]string{
				"": "Rendercast",
			},
		},
		Permissions: perms,
	}
}

// LoadManifest reads a manifest from a YAML file. Fields missing from the
// file keep their DefaultManifest values.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes YAML manifest data on top of DefaultManifest.
func ParseManifest(data []byte) (Manifest, error) {
	m := DefaultManifest()
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Permissions) == 0 {
		m.Permissions = append([]string(nil), m.Signed.Permissions...)
	}
	return m, nil
}

// RegisterPayload is the payload of a "register" envelope.
type RegisterPayload struct {
	ForcePairing bool     `json:"forcePairing"`
	PairingType  string   `json:"pairingType"`
	ClientKey    string   `json:"client-key,omitempty"`
	Manifest     Manifest `json:"manifest"`
}

// RegisteredPayload is the payload of a "registered" envelope.
type RegisteredPayload struct {
	ClientKey string `json:"client-key"`
}

// PairingPayload is the response payload when the device shows a prompt.
type PairingPayload struct {
	PairingType string `json:"pairingType"`
	ReturnValue bool   `json:"returnValue"`
}

// PinPayload carries a PIN entered by the user.
type PinPayload struct {
	PIN string `json:"pin"`
}
