package record

import "time"

// StoreVersion is the current version of the persisted device store format.
const StoreVersion = 1

// ServiceEntry pairs a service description with its credentials.
type ServiceEntry struct {
	Description ServiceDescription `json:"description"`
	Config      ConfigData         `json:"config"`
}

// DeviceRecord is the persisted form of a device the user connected to.
type DeviceRecord struct {
	ID            string         `json:"id"`
	FriendlyName  string         `json:"friendlyName,omitempty"`
	ModelName     string         `json:"modelName,omitempty"`
	ModelNumber   string         `json:"modelNumber,omitempty"`
	IPAddress     string         `json:"ipAddress,omitempty"`
	LastSeen      time.Time      `json:"lastSeen,omitempty"`
	LastConnected time.Time      `json:"lastConnected,omitempty"`
	Services      []ServiceEntry `json:"services,omitempty"`
}

// Service returns the entry for the given service UUID.
func (r *DeviceRecord) Service(serviceUUID string) (ServiceEntry, bool) {
	for _, s := range r.Services {
		if s.Description.UUID == serviceUUID {
			return s, true
		}
	}
	return ServiceEntry{}, false
}

// ServiceByID returns the entry for the given protocol id.
func (r *DeviceRecord) ServiceByID(serviceID string) (ServiceEntry, bool) {
	for _, s := range r.Services {
		if s.Description.ServiceID == serviceID {
			return s, true
		}
	}
	return ServiceEntry{}, false
}

// Merge folds a newer record into r. Identity fields from newer replace
// older values when set, services are matched by UUID and credentials
// already stored are kept when newer lacks them.
func (r *DeviceRecord) Merge(newer DeviceRecord) {
	if newer.FriendlyName != "" {
		r.FriendlyName = newer.FriendlyName
	}
	if newer.ModelName != "" {
		r.ModelName = newer.ModelName
	}
	if newer.ModelNumber != "" {
		r.ModelNumber = newer.ModelNumber
	}
	if newer.IPAddress != "" {
		r.IPAddress = newer.IPAddress
	}
	if newer.LastSeen.After(r.LastSeen) {
		r.LastSeen = newer.LastSeen
	}
	if newer.LastConnected.After(r.LastConnected) {
		r.LastConnected = newer.LastConnected
	}

	for _, ns := range newer.Services {
		replaced := false
		for i, old := range r.Services {
			if old.Description.UUID != ns.Description.UUID {
				continue
			}
			cfg := ns.Config
			if cfg.ClientKey == "" {
				cfg.ClientKey = old.Config.ClientKey
			}
			if cfg.PairingKey == "" {
				cfg.PairingKey = old.Config.PairingKey
			}
			if len(cfg.ServerCertificate) == 0 {
				cfg.ServerCertificate = old.Config.ServerCertificate
			}
			r.Services[i] = ServiceEntry{Description: ns.Description.Clone(), Config: cfg}
			replaced = true
			break
		}
		if !replaced {
			r.Services = append(r.Services, ServiceEntry{Description: ns.Description.Clone(), Config: ns.Config})
		}
	}
}

// Clone returns a deep copy of the record.
func (r DeviceRecord) Clone() DeviceRecord {
	out := r
	if r.Services != nil {
		out.Services = make([]ServiceEntry, len(r.Services))
		for i, s := range r.Services {
			cfg := s.Config
			if cfg.ServerCertificate != nil {
				cfg.ServerCertificate = append([]byte(nil), cfg.ServerCertificate...)
			}
			out.Services[i] = ServiceEntry{Description: s.Description.Clone(), Config: cfg}
		}
	}
	return out
}

// DeviceStoreFile is the on-disk layout of a device store.
type DeviceStoreFile struct {
	Version int            `json:"version"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	Devices []DeviceRecord `json:"devices"`
}
