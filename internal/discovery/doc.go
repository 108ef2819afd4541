// Package discovery turns the results of network probes into topology nodes.
//
// Producers (nmap, the TCP sweep, test fakes) report hosts through a
// Reporter. A Manager runs one producer at a time and hands every record to
// the Merger, whose single consumer goroutine applies them serially against
// the store. Records whose address is already held by a node are skipped.
// Cancelling a session stops the producer but keeps the nodes merged so far.
package discovery
