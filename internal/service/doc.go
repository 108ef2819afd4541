// Package service holds the editor session on top of the topology store.
//
// ProjectService tracks which file the topology came from and whether it
// changed since, and moves documents between the store and disk through the
// codec package. Saves are also recorded as snapshots in the repository,
// and opened files feed the recent-files list.
//
// Commander maps the editor's named actions (new_project, add_node,
// auto_layout, scan_network and so on) onto the store, the layout engine
// and the discovery manager through a single lookup table.
package service
