package types

import (
	"errors"
	"fmt"
)

type FaultKind int

const (
	ConfigurationFault FaultKind = iota + 1
	ListingFault
	FetchFault
	ExtractionFault
	IndexFault
	QueryFault
)

func (k FaultKind) String() string {
	switch k {
	case ConfigurationFault:
		return "configuration"
	case ListingFault:
		return "listing"
	case FetchFault:
		return "fetch"
	case ExtractionFault:
		return "extraction"
	case IndexFault:
		return "index"
	case QueryFault:
		return "query"
	default:
		return "unknown"
	}
}

// Fault is the error type every component hands back to the interactive
// surface.
type Fault struct {
	Kind FaultKind
	Op   string
	Path string
	Err  error
}

func (f *Fault) Error() string {
	if f.Path != "" {
		return fmt.Sprintf("%s %s: %v", f.Op, f.Path, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func NewFault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

func NewPathFault(kind FaultKind, op, path string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Path: path, Err: err}
}

// IsKind reports whether err carries a Fault of the given kind.
func IsKind(err error, kind FaultKind) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}
