package fakedevice

import (
	"encoding/xml"
	"net/http"
)

// DescriptionPath is where the UPnP description document is served.
const DescriptionPath = "/description.xml"

type descRoot struct {
	XMLName     xml.Name    `xml:"urn:schemas-upnp-org:device-1-0 root"`
	SpecVersion descVersion `xml:"specVersion"`
	Device      descDevice  `xml:"device"`
}

type descVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type descDevice struct {
	DeviceType   string        `xml:"deviceType"`
	FriendlyName string        `xml:"friendlyName"`
	Manufacturer string        `xml:"manufacturer"`
	ModelName    string        `xml:"modelName"`
	ModelNumber  string        `xml:"modelNumber"`
	UDN          string        `xml:"UDN"`
	Services     []descService `xml:"serviceList>service"`
}

type descService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

func (d *Device) description() descRoot {
	return descRoot{
		SpecVersion: descVersion{Major: 1, Minor: 0},
		Device: descDevice{
			DeviceType:   "urn:schemas-upnp-org:device:Basic:1",
			FriendlyName: d.opts.FriendlyName,
			Manufacturer: "Rendercast",
			ModelName:    d.opts.ModelName,
			ModelNumber:  d.opts.ModelNumber,
			UDN:          "uuid:" + d.opts.UUID,
			Services: []descService{{
				ServiceType: d.opts.ServiceType,
				ServiceID:   "urn:rendercast:serviceId:second-screen",
				SCPDURL:     "/scpd.xml",
				ControlURL:  "/control",
			}},
		},
	}
}

func (d *Device) serveDescription(w http.ResponseWriter, _ *http.Request) {
	data, err := xml.MarshalIndent(d.description(), "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(data)
}
