package fakedevice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type server struct {
	http *http.Server
	ssdp net.PacketConn
	wg   sync.WaitGroup
}

// Endpoints describes where a started device listens.
type Endpoints struct {
	// Location is the description URL announced over SSDP.
	Location string

	// Host and Port address the control socket.
	Host string
	Port int

	// SSDPAddr is the unicast address answering M-SEARCH, nil without SSDP.
	SSDPAddr net.Addr
}

// Start serves the control socket and the description on httpAddr and, if
// ssdpAddr is not empty, answers SSDP searches on that UDP address.
func (d *Device) Start(httpAddr, ssdpAddr string) (Endpoints, error) {
	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return Endpoints{}, err
	}
	tcp := ln.Addr().(*net.TCPAddr)
	host := tcp.IP.String()
	if tcp.IP.IsUnspecified() {
		host = "127.0.0.1"
	}
	ep := Endpoints{
		Location: "http://" + net.JoinHostPort(host, strconv.Itoa(tcp.Port)) + DescriptionPath,
		Host:     host,
		Port:     tcp.Port,
	}

	srv := &server{http: &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if ssdpAddr != "" {
		pc, err := net.ListenPacket("udp4", ssdpAddr)
		if err != nil {
			ln.Close()
			return Endpoints{}, err
		}
		srv.ssdp = pc
		ep.SSDPAddr = pc.LocalAddr()
		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			_ = d.ServeSSDP(pc, ep.Location)
		}()
	}

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		if err := srv.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Warn("fakedevice: http server stopped", "error", err)
		}
	}()

	d.mu.Lock()
	d.srv = srv
	d.mu.Unlock()

	d.logger.Info("fake device listening", "location", ep.Location, "name", d.opts.FriendlyName)
	return ep, nil
}

// Close stops the servers started by Start and drops open sockets.
func (d *Device) Close() error {
	d.mu.Lock()
	srv := d.srv
	d.srv = nil
	d.mu.Unlock()
	if srv == nil {
		return nil
	}

	d.DropConnections()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.http.Shutdown(ctx)
	if srv.ssdp != nil {
		srv.ssdp.Close()
	}
	srv.wg.Wait()
	return err
}
