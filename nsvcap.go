package module

import (
	"strconv"
	"strings"
)

// Nsvcap is a parsed module subject: name[:stream[:version[:context]]][::arch][/profile].
// Empty fields are wildcards.
type Nsvcap struct {
	Name    string
	Stream  string
	Version uint64
	HasVer  bool
	Context string
	Arch    string
	Profile string
}

// ParseNsvcap parses subject using the left-to-right, greedy grammar from
// spec.md §4.2. It never fails on a malformed numeric version: an empty or
// non-numeric version field is simply treated as a wildcard.
func ParseNsvcap(subject string) Nsvcap {
	var n Nsvcap

	if slash := strings.IndexByte(subject, '/'); slash >= 0 {
		n.Profile = subject[slash+1:]
		subject = subject[:slash]
	}

	if idx := strings.Index(subject, "::"); idx >= 0 {
		n.Arch = subject[idx+2:]
		subject = subject[:idx]
	}

	fields := strings.SplitN(subject, ":", 4)
	n.Name = fields[0]
	if len(fields) > 1 {
		n.Stream = fields[1]
	}
	if len(fields) > 2 && fields[2] != "" {
		if v, err := strconv.ParseUint(fields[2], 10, 64); err == nil {
			n.Version = v
			n.HasVer = true
		}
	}
	if len(fields) > 3 {
		n.Context = fields[3]
	}
	return n
}

// Matches reports whether every non-empty field of n equals p's
// corresponding field. The profile segment, if present, is ignored for
// matching purposes (it narrows which profile a caller wants, not which
// package record matches).
func (n Nsvcap) Matches(p *ModulePackage) bool {
	if n.Name != "" && n.Name != p.Name() {
		return false
	}
	if n.Stream != "" && n.Stream != p.Stream() {
		return false
	}
	if n.HasVer && n.Version != p.Version() {
		return false
	}
	if n.Context != "" && n.Context != p.Context() {
		return false
	}
	if n.Arch != "" && n.Arch != p.Arch() {
		return false
	}
	return true
}

// QueryFields is the explicit five-field query form, equivalent to an
// Nsvcap with no profile.
type QueryFields struct {
	Name, Stream, Context, Arch string
	Version                     uint64
	HasVersion                  bool
}

func (f QueryFields) toNsvcap() Nsvcap {
	return Nsvcap{
		Name: f.Name, Stream: f.Stream, Context: f.Context, Arch: f.Arch,
		Version: f.Version, HasVer: f.HasVersion,
	}
}
