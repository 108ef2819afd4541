// Package domain defines the core types of the netlayers topology editor.
//
// This package contains the entities and value objects shared by the three
// topology layers (L1 physical, L2 data-link, L3 network): devices, the
// connections between them, the persisted project document and the typed
// errors every other package reports through.
//
// # Core Types
//
// Node represents a device. Its integer ID is issued once by the topology
// store and never reused. A node carries one canonical position plus optional
// explicit per-layer overrides, and three groups of layer metadata (L1
// location and ports, L2 MAC and VLAN, L3 address, mask and gateway).
//
// Connection represents an undirected link inside exactly one layer. Its
// identity is the PairKey (min id, max id), so a layer holds at most one
// connection per node pair. L1 links carry port labels, L2 links carry a
// switchport mode and VLAN, L3 links only a type label.
//
// Document is the persisted project: metadata, nodes, one connection list per
// layer and editor settings. Version "1.2" is written on every save.
//
// DiscoveredHost is a single result from a discovery collaborator, the input
// of the discovery merge.
//
// # Errors
//
// NotFoundError, ParseError, ValidationError, ConflictError and IOError each
// match their sentinel (ErrNotFound, ErrParse, ...) through errors.Is, so
// callers never compare message strings.
//
// # Addressing
//
// netaddr.go holds the IPv4 helpers the editor uses for address validation,
// subnet math and conflict detection.
//
// # Design Principles
//
// - Value types with explicit Clone where the store hands data out
// - No database or external dependencies
// - Meaningful constants for every enumerated attribute
package domain
