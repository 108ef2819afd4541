package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching across packages
var (
	ErrNotFound   = errors.New("not found")
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrIO         = errors.New("io error")
)

// NotFoundError reports an unknown node, connection, command or file
type NotFoundError struct {
	Kind string // "node", "connection", "file", ...
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// Is makes errors.Is(err, ErrNotFound) work
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NodeNotFound is a shorthand for the most common lookup failure
func NodeNotFound(id int) *NotFoundError {
	return &NotFoundError{Kind: "node", Key: fmt.Sprintf("%d", id)}
}

// ParseError reports a malformed persisted document
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed document: %v", e.Err)
	}
	return fmt.Sprintf("malformed document %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError reports structurally incomplete or invalid input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError reports a duplicate identity that the store refused
type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.Key)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// IOError reports a disk failure during save, backup rotation or restore
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
