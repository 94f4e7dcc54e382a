package module

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpm-software-management/module-container-go/internal/resolve"
)

const httpdStream = `
document: modulemd
data:
  name: httpd
  stream: 2.4
  version: 1
  context: c0
  arch: x86_64
  artifacts:
    rpms: [httpd-0:2.4-1.x86_64]
  profiles:
    default:
      rpms: [httpd]
  dependencies:
    - requires:
        base-runtime: [f26]
---
document: modulemd
data:
  name: base-runtime
  stream: f26
  version: 1
  context: c0
  arch: x86_64
`

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	opts := Options{InstallRoot: t.TempDir(), Arch: "x86_64"}
	c, err := NewContainer(opts, resolve.ReferenceSolver{}, nil, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestContainerAddAndFind(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.Add(strings.NewReader(httpdStream), "repo1"))

	pkgs := c.FindSubject("httpd:2.4")
	require.Len(t, pkgs, 1)
	require.Equal(t, "httpd", pkgs[0].Name())
	require.Equal(t, []string{"base-runtime", "httpd"}, c.ModuleNames())
}

func TestContainerEnableResolveAndSave(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.Add(strings.NewReader(httpdStream), "repo1"))

	require.NoError(t, c.Enable("httpd", "2.4"))
	require.NoError(t, c.Enable("base-runtime", "f26"))

	res, err := c.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, resolve.NoError, res.ErrKind)

	httpd := c.FindSubject("httpd:2.4")[0]
	require.True(t, c.IsPackageActive(httpd))

	require.True(t, c.IsChanged())
	require.NoError(t, c.Save())
	require.False(t, c.IsChanged())
}

func TestContainerDuplicateBuildIsSkipped(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.Add(strings.NewReader(httpdStream), "repo1"))
	require.NoError(t, c.Add(strings.NewReader(httpdStream), "repo2"))

	require.Len(t, c.FindSubject("httpd:2.4"), 1)
}

func TestContainerEnableDependencyTree(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.Add(strings.NewReader(httpdStream), "repo1"))

	seed := c.FindSubject("httpd:2.4")[0]
	enabled, err := c.EnableDependencyTree([]*ModulePackage{seed})
	require.NoError(t, err)

	var names []string
	for _, ns := range enabled {
		names = append(names, ns.Name)
	}
	require.Contains(t, names, "httpd")
	require.Contains(t, names, "base-runtime")

	entry := c.persistor.Entry("base-runtime")
	require.Equal(t, "f26", entry.Stream)
}

func TestContainerRequiresModuleEnablement(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.Add(strings.NewReader(httpdStream), "repo1"))

	need := c.RequiresModuleEnablement([]string{"httpd-0:2.4-1.x86_64"})
	require.Len(t, need, 1)
	require.Equal(t, "httpd", need[0].Name())

	require.NoError(t, c.Enable("httpd", "2.4"))
	need = c.RequiresModuleEnablement([]string{"httpd-0:2.4-1.x86_64"})
	require.Empty(t, need)
}

func TestContainerFailSafeSnapshotWrittenOnSave(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.Add(strings.NewReader(httpdStream), "repo1"))
	require.NoError(t, c.Enable("httpd", "2.4"))
	require.NoError(t, c.Save())

	snap, err := c.LoadFailSafeData("httpd", "2.4")
	require.NoError(t, err)
	require.NotEmpty(t, snap)

	require.NoError(t, c.Disable("httpd"))
	require.NoError(t, c.Save())
	snap, err = c.LoadFailSafeData("httpd", "2.4")
	require.NoError(t, err)
	require.Empty(t, snap)
}

func TestContainerAddPlatformPackageOverride(t *testing.T) {
	c := newTestContainer(t)
	pkg, err := c.AddPlatformPackage("f27")
	require.NoError(t, err)
	require.Equal(t, "platform", pkg.Name())
	require.Equal(t, "f27", pkg.Stream())

	_, err = c.AddPlatformPackage("f28")
	require.Error(t, err)
}

func TestContainerStatePersistsAcrossReopen(t *testing.T) {
	root := t.TempDir()
	opts := Options{InstallRoot: root, Arch: "x86_64"}

	c1, err := NewContainer(opts, resolve.ReferenceSolver{}, nil, io.Discard)
	require.NoError(t, err)
	require.NoError(t, c1.Enable("httpd", "2.4"))
	require.NoError(t, c1.Save())
	require.NoError(t, c1.Close())

	c2, err := NewContainer(opts, resolve.ReferenceSolver{}, nil, io.Discard)
	require.NoError(t, err)
	defer c2.Close()

	entry := c2.persistor.Entry("httpd")
	require.Equal(t, "2.4", entry.Stream)
}
