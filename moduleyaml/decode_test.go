package moduleyaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleStream = `
document: modulemd
data:
  name: httpd
  stream: 2.4
  version: 20181121144009
  context: c0ffee
  arch: x86_64
  static_context: true
  artifacts:
    rpms:
      - httpd-0:2.4.37-3.module+el8+2774+18c1f24f.x86_64
  profiles:
    default:
      rpms:
        - httpd
        - mod_ssl
  dependencies:
    - requires:
        base-runtime: [f26]
---
document: modulemd-defaults
data:
  module: httpd
  stream: 2.4
  profiles:
    2.4: [default]
  intents:
    server:
      stream: 2.4
      profiles: [default]
`

func TestDecodeMixedDocumentStream(t *testing.T) {
	modules, defs, err := DecodeBytes([]byte(sampleStream))
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.Len(t, defs, 1)

	m := modules[0]
	require.Equal(t, "httpd", m.Name)
	require.Equal(t, "2.4", m.Stream)
	require.Equal(t, "c0ffee", m.Context)
	require.True(t, m.StaticContext)
	require.Equal(t, []string{"httpd-0:2.4.37-3.module+el8+2774+18c1f24f.x86_64"}, m.Artifacts)
	require.ElementsMatch(t, []string{"httpd", "mod_ssl"}, m.Profiles["default"])
	require.Len(t, m.Requires, 1)
	require.Equal(t, Alternative{Module: "base-runtime", Stream: "f26"}, m.Requires[0][0])

	d := defs[0]
	require.Equal(t, "httpd", d.Module)
	require.Equal(t, "2.4", d.DefaultStream)
	require.Equal(t, []string{"default"}, d.Profiles["2.4"])
	require.Contains(t, d.Intents, "server")
}

func TestDecodeSkipsUnrecognizedDocument(t *testing.T) {
	const doc = `
document: modulemd-obsoletes
data:
  module: httpd
---
document: modulemd
data:
  name: base-runtime
  stream: f26
  version: 1
`
	modules, defs, err := DecodeBytes([]byte(doc))
	require.NoError(t, err)
	require.Empty(t, defs)
	require.Len(t, modules, 1)
	require.Equal(t, "base-runtime", modules[0].Name)
}

func TestDecodeAnyStreamDependency(t *testing.T) {
	const doc = `
document: modulemd
data:
  name: nodejs
  stream: "10"
  version: 1
  dependencies:
    - requires:
        platform: []
`
	modules, _, err := DecodeBytes([]byte(doc))
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.Len(t, modules[0].Requires, 1)
	require.Equal(t, "platform", modules[0].Requires[0][0].Module)
	require.Equal(t, "", modules[0].Requires[0][0].Stream)
}

func TestDecodeRejectsEmptyStream(t *testing.T) {
	_, _, err := DecodeBytes([]byte("not-a-modulemd-document: true\n"))
	require.Error(t, err)
}
