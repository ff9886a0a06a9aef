// Package testctl implements the test controller framework: it owns
// server/client endpoints, spins up the network loop,
// runs a user-supplied test body on its own goroutine, and coordinates
// shutdown and cancellation.
package testctl

import (
	"fmt"
)

// Role is an opaque configuration record for a named participant.
type Role map[string]interface{}

// Link is a connection-level configuration record between a client
// role and a server role speaking a given protocol.
type Link struct {
	Protocol        string // defaults to "FIX" when matching via GetLink
	ProtocolVersion string
	Host            string
	Port            int
	ActsAsServer    string
	Roles           map[string]string
	HeaderFields    []int
	BinaryFields    map[int]bool
	RequiredFields  []int
	GroupFields     map[int]map[int]bool
	MaxLength       int
}

// Config exposes the three lookups a controller needs: roles, links
// between a client and server role, and arbitrary named sections.
// Implementations must return deep copies so callers may mutate freely.
type Config interface {
	GetRole(name string) (Role, error)
	GetLink(clientRole, serverRole, protocolName string) (*Link, error)
	GetSection(name string) (interface{}, error)
}

// MapConfig is an in-memory Config, suitable for both
// programmatically-built configuration and configuration loaded from
// a file via an external loader (out of scope here; cmd/fixtest
// builds a fixed one in code for its registered test module).
type MapConfig struct {
	Roles    map[string]Role
	Links    []Link
	Sections map[string]interface{}
}

func (c *MapConfig) GetRole(name string) (Role, error) {
	r, ok := c.Roles[name]
	if !ok {
		return nil, fmt.Errorf("testctl: no such role %q", name)
	}
	return deepCopyMap(r).(Role), nil
}

func (c *MapConfig) GetLink(clientRole, serverRole, protocolName string) (*Link, error) {
	if protocolName == "" {
		protocolName = "FIX"
	}
	for _, l := range c.Links {
		proto := l.Protocol
		if proto == "" {
			proto = "FIX"
		}
		if l.ActsAsServer == serverRole && proto == protocolName {
			return cloneLink(l), nil
		}
	}
	return nil, fmt.Errorf("testctl: no link for client=%q server=%q protocol=%q", clientRole, serverRole, protocolName)
}

func (c *MapConfig) GetSection(name string) (interface{}, error) {
	s, ok := c.Sections[name]
	if !ok {
		return nil, fmt.Errorf("testctl: no such section %q", name)
	}
	return deepCopyAny(s), nil
}

// cloneLink deep-copies l so callers may mutate the returned Link (and
// its nested slices/maps) without corrupting the stored config or
// another Link copied from the same entry, matching the deep-copy
// guarantee GetRole gives via deepCopyMap.
func cloneLink(l Link) *Link {
	cp := l

	if l.Roles != nil {
		cp.Roles = make(map[string]string, len(l.Roles))
		for k, v := range l.Roles {
			cp.Roles[k] = v
		}
	}
	if l.HeaderFields != nil {
		cp.HeaderFields = append([]int(nil), l.HeaderFields...)
	}
	if l.RequiredFields != nil {
		cp.RequiredFields = append([]int(nil), l.RequiredFields...)
	}
	if l.BinaryFields != nil {
		cp.BinaryFields = make(map[int]bool, len(l.BinaryFields))
		for k, v := range l.BinaryFields {
			cp.BinaryFields[k] = v
		}
	}
	if l.GroupFields != nil {
		cp.GroupFields = make(map[int]map[int]bool, len(l.GroupFields))
		for tag, inner := range l.GroupFields {
			innerCp := make(map[int]bool, len(inner))
			for k, v := range inner {
				innerCp[k] = v
			}
			cp.GroupFields[tag] = innerCp
		}
	}

	return &cp
}

func deepCopyMap(m map[string]interface{}) interface{} {
	out := make(Role, len(m))
	for k, v := range m {
		out[k] = deepCopyAny(v)
	}
	return out
}

func deepCopyAny(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case Role:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyAny(e)
		}
		return out
	default:
		return v
	}
}
