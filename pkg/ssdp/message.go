package ssdp

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// NTS values.
const (
	ntsAlive  = "ssdp:alive"
	ntsByeBye = "ssdp:byebye"
)

var uuidPattern = regexp.MustCompile(`(?i)uuid:([^:]+)`)

// uuidFromUSN extracts the UUID from a USN header.
func uuidFromUSN(usn string) (string, bool) {
	m := uuidPattern.FindStringSubmatch(usn)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// searchRequest builds an M-SEARCH datagram.
func searchRequest(host, target string, mx int) []byte {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s\r\n", host)
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	fmt.Fprintf(&b, "MX: %d\r\n", mx)
	fmt.Fprintf(&b, "ST: %s\r\n", target)
	b.WriteString("USER-AGENT: Go/1 UPnP/1.1 rendercast/1\r\n\r\n")
	return []byte(b.String())
}

// parseResponse parses a search response datagram.
func parseResponse(data []byte) (http.Header, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Header, nil
}

// announcement is a search response or NOTIFY reduced to what the
// provider tracks.
type announcement struct {
	target   string
	uuid     string
	location string
	host     string
	headers  http.Header
}

// sameHeaders compares the headers that identify a device's advertisement.
func sameHeaders(a, b http.Header) bool {
	for _, k := range []string{"Location", "Server", "Usn"} {
		if a.Get(k) != b.Get(k) {
			return false
		}
	}
	return true
}
