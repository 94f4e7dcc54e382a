// Package moduleyaml decodes modulemd and modulemd-defaults YAML documents
// into plain DTOs. It is the one place that knows the YAML vocabulary;
// nothing past this package's boundary ever sees a yaml.Node or tag.
package moduleyaml

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ModuleDoc is the decoded form of one "document: modulemd" entry.
type ModuleDoc struct {
	Name          string
	Stream        string
	Version       uint64
	Context       string
	Arch          string
	StaticContext bool
	Artifacts     []string
	Profiles      map[string][]string
	Requires      [][]Alternative
}

// Alternative is one (module, stream-or-any) dependency constraint.
type Alternative struct {
	Module string
	Stream string // "" means any stream
}

// DefaultsDoc is the decoded form of one "document: modulemd-defaults" entry.
type DefaultsDoc struct {
	Module        string
	DefaultStream string
	Profiles      map[string][]string
	Intents       map[string]string // intent name -> stream
}

type docTypeProbe struct {
	Document string `yaml:"document"`
}

type moduleEnvelope struct {
	Data struct {
		Name          string `yaml:"name"`
		Stream        string `yaml:"stream"`
		Version       uint64 `yaml:"version"`
		Context       string `yaml:"context"`
		Arch          string `yaml:"arch"`
		StaticContext bool   `yaml:"static_context"`
		Artifacts     struct {
			Rpms []string `yaml:"rpms"`
		} `yaml:"artifacts"`
		Profiles map[string]struct {
			Rpms []string `yaml:"rpms"`
		} `yaml:"profiles"`
		Dependencies []struct {
			Requires map[string][]string `yaml:"requires"`
		} `yaml:"dependencies"`
	} `yaml:"data"`
}

type defaultsEnvelope struct {
	Data struct {
		Module   string              `yaml:"module"`
		Stream   string              `yaml:"stream"`
		Profiles map[string][]string `yaml:"profiles"`
		Intents  map[string]struct {
			Stream   string   `yaml:"stream"`
			Profiles []string `yaml:"profiles"`
		} `yaml:"intents"`
	} `yaml:"data"`
}

// Decode splits r (which may contain multiple "---"-separated YAML
// documents, as repo-supplied modulemd streams typically do) into
// ModuleDoc and DefaultsDoc values. A document of an unrecognized type, or
// one whose fields do not decode into the expected shape, is skipped rather
// than raised — spec.md §7 requires loading to tolerate a single bad
// document. A YAML syntax error ends decoding: the documents before it are
// kept, the ones after it are not read. An input that yields no modulemd or
// modulemd-defaults document at all returns an error.
func Decode(r io.Reader) ([]ModuleDoc, []DefaultsDoc, error) {
	var modules []ModuleDoc
	var defs []DefaultsDoc

	dec := yaml.NewDecoder(bufio.NewReader(r))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if err == io.EOF {
			break
		}
		if err != nil {
			break // stop on the first malformed document; keep what parsed so far
		}

		var probe docTypeProbe
		if err := node.Decode(&probe); err != nil {
			continue
		}

		switch probe.Document {
		case "modulemd":
			var env moduleEnvelope
			if err := node.Decode(&env); err == nil {
				modules = append(modules, toModuleDoc(env))
			}
		case "modulemd-defaults":
			var env defaultsEnvelope
			if err := node.Decode(&env); err == nil {
				defs = append(defs, toDefaultsDoc(env))
			}
		}
	}

	if len(modules) == 0 && len(defs) == 0 {
		return nil, nil, errors.New("no recognizable modulemd or modulemd-defaults documents")
	}
	return modules, defs, nil
}

func toModuleDoc(env moduleEnvelope) ModuleDoc {
	d := ModuleDoc{
		Name:          env.Data.Name,
		Stream:        env.Data.Stream,
		Version:       env.Data.Version,
		Context:       env.Data.Context,
		Arch:          env.Data.Arch,
		StaticContext: env.Data.StaticContext,
		Artifacts:     env.Data.Artifacts.Rpms,
		Profiles:      make(map[string][]string),
	}
	for name, p := range env.Data.Profiles {
		d.Profiles[name] = p.Rpms
	}
	for _, dep := range env.Data.Dependencies {
		var group []Alternative
		for module, streams := range dep.Requires {
			if len(streams) == 0 {
				group = append(group, Alternative{Module: module})
				continue
			}
			for _, stream := range streams {
				group = append(group, Alternative{Module: module, Stream: stream})
			}
		}
		if len(group) > 0 {
			d.Requires = append(d.Requires, group)
		}
	}
	return d
}

func toDefaultsDoc(env defaultsEnvelope) DefaultsDoc {
	d := DefaultsDoc{
		Module:        env.Data.Module,
		DefaultStream: env.Data.Stream,
		Profiles:      env.Data.Profiles,
		Intents:       make(map[string]string),
	}
	for name, intent := range env.Data.Intents {
		d.Intents[name] = intent.Stream
	}
	return d
}

// DecodeBytes is a convenience wrapper around Decode for callers holding
// the document already in memory (e.g. an embedded modulemd blob read
// from a repo's metadata).
func DecodeBytes(b []byte) ([]ModuleDoc, []DefaultsDoc, error) {
	return Decode(bytes.NewReader(b))
}
