package ssdp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/huin/goupnp"
)

// Description is the part of a UPnP device description the provider uses.
type Description struct {
	FriendlyName string
	Manufacturer string
	ModelName    string
	ModelNumber  string
	UDN          string
	DeviceType   string

	// ServiceTypes lists the service types of the root device and all
	// embedded devices.
	ServiceTypes []string
}

// Fetcher loads the description document at location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (Description, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) (Description, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, location string) (Description, error) {
	return f(ctx, location)
}

// FetchDescription loads a UPnP description with goupnp.
func FetchDescription(ctx context.Context, location string) (Description, error) {
	u, err := url.Parse(location)
	if err != nil {
		return Description{}, fmt.Errorf("parse location: %w", err)
	}
	root, err := goupnp.DeviceByURLCtx(ctx, u)
	if err != nil {
		return Description{}, err
	}

	dev := &root.Device
	desc := Description{
		FriendlyName: dev.FriendlyName,
		Manufacturer: dev.Manufacturer,
		ModelName:    dev.ModelName,
		ModelNumber:  dev.ModelNumber,
		UDN:          dev.UDN,
		DeviceType:   dev.DeviceType,
	}
	dev.VisitServices(func(s *goupnp.Service) {
		desc.ServiceTypes = append(desc.ServiceTypes, s.ServiceType)
	})
	return desc, nil
}
