package persist

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

type rawEntry struct {
	Name                string `toml:"name"`
	Stream              string `toml:"stream"`
	Profiles            string `toml:"profiles"`
	State               string `toml:"state"`
	StreamChangedByUser int    `toml:"stream_changed_by_user"`
}

func toRaw(name string, e Entry) rawEntry {
	return rawEntry{
		Name:                name,
		Stream:              e.Stream,
		Profiles:            strings.Join(e.Profiles, ","),
		State:               e.State.String(),
		StreamChangedByUser: boolToInt(e.UserChanged),
	}
}

func fromRaw(r rawEntry) Entry {
	e := Entry{
		State:       ParseState(r.State),
		Stream:      r.Stream,
		UserChanged: r.StreamChangedByUser != 0,
	}
	if r.Profiles != "" {
		e.Profiles = strings.Split(r.Profiles, ",")
	}
	return e
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// loadAll reads every <name>.modulemd file directly under dir. If dir is
// absent, restoreBackupIfNeeded first tries to recover from a
// same-directory ".orig" backup left by an interrupted Save, per the
// crash-safety requirement in spec.md §5.
func loadAll(dir string) (map[string]Entry, error) {
	if err := restoreBackupIfNeeded(dir); err != nil {
		return nil, err
	}

	out := make(map[string]Entry)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return out, nil
	}

	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.HasSuffix(path, ".modulemd") {
				return nil
			}
			name := strings.TrimSuffix(filepath.Base(path), ".modulemd")
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var raw rawEntry
			if err := toml.Unmarshal(b, &raw); err != nil {
				// A single malformed file is skipped, not fatal
				// (spec.md §7: loading never raises on a bad document).
				return nil
			}
			out[name] = fromRaw(raw)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func restoreBackupIfNeeded(dir string) error {
	backup := dir + ".orig"
	if _, err := os.Stat(dir); err == nil {
		return nil // current directory is present; nothing to restore
	}
	if _, err := os.Stat(backup); err != nil {
		return nil // no backup either; a fresh persistor
	}
	return os.Rename(backup, dir)
}

// writeAll renders every entry of m into a fresh sibling directory, then
// swaps it into place: the previous committed directory is moved aside to
// "<dir>.orig" and the new one renamed in. This is the same two-step
// "write sibling, then rename" shape as the teacher's SafeWriter
// (txn_writer.go): never leaves a half-written dir at the canonical path.
func writeAll(dir string, m map[string]Entry) error {
	parent := filepath.Dir(dir)
	tmp, err := os.MkdirTemp(parent, filepath.Base(dir)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "creating staging directory")
	}
	defer os.RemoveAll(tmp)

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := m[name]
		if e.State == StateUnknown {
			continue // nothing meaningful to persist for an untouched module
		}
		b, err := toml.Marshal(toRaw(name, e))
		if err != nil {
			return errors.Wrapf(err, "encoding module %s", name)
		}
		if err := os.WriteFile(pathFor(tmp, name), b, 0644); err != nil {
			return errors.Wrapf(err, "writing module %s", name)
		}
	}

	backup := dir + ".orig"
	os.RemoveAll(backup)
	if _, err := os.Stat(dir); err == nil {
		if err := shutil.CopyTree(dir, backup, nil); err != nil {
			return errors.Wrap(err, "backing up previous module state")
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "removing previous module state directory")
	}
	if err := os.Rename(tmp, dir); err != nil {
		return errors.Wrap(err, "promoting staged module state")
	}
	os.RemoveAll(backup)
	return nil
}
