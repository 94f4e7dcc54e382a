package defaults

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// onDiskDefaults is the YAML shape of a file under
// <install_root>/etc/dnf/modules.defaults.d/.
type onDiskDefaults struct {
	Module        string              `yaml:"module"`
	DefaultStream string              `yaml:"stream"`
	Profiles      map[string][]string `yaml:"profiles"`
	Intents       map[string]struct {
		Stream string `yaml:"stream"`
	} `yaml:"intents"`
}

// AddFromDisk merges every *.yaml/*.yml file in dir. A missing directory
// is not an error (no on-disk defaults configured); a malformed file is
// skipped (spec.md §7: loading never raises on a single bad document).
func (s *Store) AddFromDisk(dir string) ([]Problem, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var problems []Problem
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var doc onDiskDefaults
			if err := yaml.Unmarshal(b, &doc); err != nil || doc.Module == "" {
				return nil
			}
			intents := make(map[string]string, len(doc.Intents))
			for name, intent := range doc.Intents {
				intents[name] = intent.Stream
			}
			problems = append(problems, s.Add(Document{
				Module:        doc.Module,
				DefaultStream: doc.DefaultStream,
				Profiles:      doc.Profiles,
				Intents:       intents,
			})...)
			return nil
		},
	})
	if err != nil {
		return problems, errors.Wrap(err, "walking defaults directory")
	}
	return problems, nil
}
