// Package repository defines the data access interfaces for netlayers.
//
// Project documents themselves live in JSON or YAML files written by the
// codec package. The repository keeps what belongs to the editor rather
// than to a project: the recently opened files list and a history of saved
// snapshots per project path. The implementation is in the sqlite
// subpackage.
package repository
