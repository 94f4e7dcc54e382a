package module

// Options are the configuration values spec.md §6 names. The zero value is
// not meaningful for InstallRoot; callers should go through config.Load or
// set InstallRoot explicitly before calling NewContainer.
type Options struct {
	InstallRoot      string
	Arch             string
	PersistDir       string // default "/etc/dnf/modules.d"
	AllArch          bool
	MaxStreamChanges uint32 // default 2
	DebugSolver      bool
}

// WithDefaults returns a copy of o with zero-valued fields replaced by the
// documented defaults.
func (o Options) WithDefaults() Options {
	if o.PersistDir == "" {
		o.PersistDir = "/etc/dnf/modules.d"
	}
	if o.MaxStreamChanges == 0 {
		o.MaxStreamChanges = 2
	}
	return o
}
