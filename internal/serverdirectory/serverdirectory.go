// Package serverdirectory resolves the server_id field of a parsed
// peer code to a dialable rendezvous server address, via a small
// operator-maintained YAML file.
package serverdirectory

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrServerNotFound is returned when a server ID has no entry in the
// directory.
var ErrServerNotFound = errors.New("serverdirectory: server ID not found")

// Directory maps a peer code's server_id to the rendezvous server's
// dialable address.
type Directory struct {
	entries map[uint64]string
}

// fileFormat is the on-disk YAML shape: hex server ID strings (to
// match how peer codes render them) mapped to "host:port" addresses.
//
//	servers:
//	  "1B": rendezvous.example.com:2311
//	  "2C": rendezvous-eu.example.com:2311
type fileFormat struct {
	Servers map[string]string `yaml:"servers"`
}

// Load reads a server directory from a YAML file at path.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("serverdirectory: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a server directory from raw YAML bytes.
func Parse(data []byte) (*Directory, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("serverdirectory: parse YAML: %w", err)
	}

	entries := make(map[uint64]string, len(ff.Servers))
	for idHex, addr := range ff.Servers {
		id, err := strconv.ParseUint(idHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("serverdirectory: invalid server ID %q: %w", idHex, err)
		}
		entries[id] = addr
	}
	return &Directory{entries: entries}, nil
}

// Lookup returns the dialable address for serverID, or
// ErrServerNotFound if it has no entry.
func (d *Directory) Lookup(serverID uint64) (string, error) {
	addr, ok := d.entries[serverID]
	if !ok {
		return "", fmt.Errorf("%w: %x", ErrServerNotFound, serverID)
	}
	return addr, nil
}
