package fakedevice

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ServeSSDP answers M-SEARCH requests read from conn until conn is closed.
// Responses go back to the sender with location as LOCATION.
func (d *Device) ServeSSDP(conn net.PacketConn, location string) error {
	buf := make([]byte, 8192)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(buf[:n])))
		if err != nil || req.Method != "M-SEARCH" {
			continue
		}
		st := req.Header.Get("ST")
		if st != "ssdp:all" && st != d.opts.ServiceType {
			continue
		}
		if _, err := conn.WriteTo(d.searchResponse(location), addr); err != nil {
			d.logger.Debug("fakedevice: ssdp reply failed", "error", err)
		}
	}
}

// Announce sends a NOTIFY to addr. alive selects ssdp:alive over ssdp:byebye.
func (d *Device) Announce(conn net.PacketConn, addr net.Addr, location string, alive bool) error {
	nts := "ssdp:byebye"
	if alive {
		nts = "ssdp:alive"
	}
	lines := []string{
		"NOTIFY * HTTP/1.1",
		"HOST: 239.255.255.250:1900",
		"CACHE-CONTROL: max-age=1800",
		"LOCATION: " + location,
		"NT: " + d.opts.ServiceType,
		"NTS: " + nts,
		"SERVER: Linux/4.4 UPnP/1.0 fakedevice/1.0",
		"USN: " + d.usn(),
		"", "",
	}
	_, err := conn.WriteTo([]byte(strings.Join(lines, "\r\n")), addr)
	return err
}

func (d *Device) searchResponse(location string) []byte {
	lines := []string{
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age=1800",
		"EXT:",
		"LOCATION: " + location,
		"SERVER: Linux/4.4 UPnP/1.0 fakedevice/1.0",
		"ST: " + d.opts.ServiceType,
		"USN: " + d.usn(),
		"", "",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func (d *Device) usn() string {
	return fmt.Sprintf("uuid:%s::%s", d.opts.UUID, d.opts.ServiceType)
}
