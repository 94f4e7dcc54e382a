package module

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// platformModuleName is the synthetic module name spec.md §4.7 reserves for
// the host platform pseudo-module.
const platformModuleName = "platform"

// detectPlatform reads /etc/os-release (or osReleasePath, for tests) and
// derives the platform stream from its ID and VERSION_ID fields: ID
// followed directly by the major part of VERSION_ID (ID=fedora,
// VERSION_ID=27 gives "fedora27").
func detectPlatform(osReleasePath string) (stream string, err error) {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return "", errors.Wrap(err, "reading os-release")
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		vars[kv[0]] = strings.Trim(kv[1], `"`)
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "scanning os-release")
	}

	id, version := vars["ID"], vars["VERSION_ID"]
	if id == "" || version == "" {
		return "", errors.New("os-release missing ID or VERSION_ID")
	}
	return id + strings.SplitN(version, ".", 2)[0], nil
}

// addPlatformPackage synthesizes the platform:<stream> pseudo-module used as
// a dependency target by real modules (e.g. "requires: platform: [f27]").
// override, if non-empty, bypasses /etc/os-release detection entirely —
// the equivalent of the original's module_platform_id config knob.
//
// Per spec.md §4.7, a container may carry at most one platform package; a
// second call returns an error and leaves the existing one in place.
func (c *Container) addPlatformPackage(override string) (*ModulePackage, error) {
	stream := override
	if stream == "" {
		var err error
		stream, err = detectPlatform("/etc/os-release")
		if err != nil {
			return nil, errors.Wrap(err, "detecting platform module")
		}
	}

	for _, existing := range c.byIdentity {
		if existing.Name() == platformModuleName {
			return nil, errors.Errorf("platform module already set to stream %q", existing.Stream())
		}
	}

	id := Identity{Name: platformModuleName, Stream: stream, Version: 0, Context: "", Arch: c.opts.Arch}
	pkg := NewModulePackage(id, "platform")
	pkg.StaticContext = true
	c.insertPackage(pkg)

	if err := c.persistor.Enable(platformModuleName, stream, false); err != nil {
		return nil, errors.Wrap(err, "enabling platform module")
	}
	return pkg, nil
}
