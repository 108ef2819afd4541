// Package topology holds the live, in-memory network model of the editor.
//
// Store is the single authority for node identity. It issues ids that are
// never reused within a session, owns node attributes and the canonical
// position, and broadcasts every node addition and removal to the three
// layer overlays through the NodeObserver interface.
//
// Overlay holds the connection set of one layer (L1, L2 or L3) as pair keys
// over store ids. Overlays never mint ids of their own.
//
// # Locking
//
// Store and overlays share one sync.RWMutex. Observer callbacks run with the
// lock held, so a node deletion cascades through all three layers before any
// reader can look again.
//
// # Events
//
// Mutations publish on an EventBus. Subscribers receive events on their own
// channels; a full channel drops the event rather than blocking the writer.
package topology
