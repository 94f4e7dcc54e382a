package persist

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/rpm-software-management/module-container-go/log"
	"github.com/stretchr/testify/require"
)

func newTestPersistor(t *testing.T, maxChanges uint32) *Persistor {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "modules", "state")
	p, err := Open(dir, maxChanges, log.New(io.Discard))
	require.NoError(t, err)
	return p
}

func isEnabled(p *Persistor, name, stream string) bool {
	e := p.Entry(name)
	return e.Stream == stream &&
		(e.State == StateEnabled || e.State == StateDefault || e.State == StateInstalled)
}

// S1: enable/save/read-back.
func TestEnableSaveReadBack(t *testing.T) {
	p := newTestPersistor(t, 2)

	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Enable("base-runtime", "f26", true))
	require.NoError(t, p.Save())

	require.True(t, isEnabled(p, "httpd", "2.4"))
	require.False(t, isEnabled(p, "httpd", "2.2"))

	streams := p.CurrentEnabledStreams()
	require.Len(t, streams, 2)

	// Staging matches what was just committed, so nothing reads as a
	// pending change anymore.
	require.Empty(t, p.GetEnabledStreams())
}

// S1b: GetEnabledStreams only reports modules newly enabled since the
// last commit, not ones already enabled in committed.
func TestGetEnabledStreamsIsADiff(t *testing.T) {
	p := newTestPersistor(t, 2)
	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Save())

	require.NoError(t, p.Enable("base-runtime", "f26", true))
	streams := p.GetEnabledStreams()
	require.Len(t, streams, 1)
	require.Equal(t, "base-runtime", streams[0].Module)
}

// S2: disable then rollback.
func TestDisableThenRollback(t *testing.T) {
	p := newTestPersistor(t, 2)
	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Enable("base-runtime", "f26", true))
	require.NoError(t, p.Save())

	require.NoError(t, p.Disable("httpd", true))
	require.NoError(t, p.Disable("base-runtime", true))
	require.False(t, isEnabled(p, "httpd", "2.4"))
	require.False(t, isEnabled(p, "base-runtime", "f26"))

	p.Rollback()
	require.True(t, isEnabled(p, "httpd", "2.4"))
	require.True(t, isEnabled(p, "base-runtime", "f26"))
}

// S3: install/uninstall profile.
func TestInstallUninstallProfile(t *testing.T) {
	p := newTestPersistor(t, 10)
	require.NoError(t, p.Install("httpd", "2.4", "default", true))
	require.NoError(t, p.Install("httpd", "2.4", "doc", true))
	require.NoError(t, p.Install("httpd", "2.4", "default", true)) // redundant

	e := p.Entry("httpd")
	require.ElementsMatch(t, []string{"default", "doc"}, e.Profiles)
	require.Equal(t, StateInstalled, e.State)

	require.NoError(t, p.Save())

	require.NoError(t, p.Uninstall("httpd", "2.4", "default", true))
	e = p.Entry("httpd")
	require.NotContains(t, e.Profiles, "default")
	removed := p.GetRemovedProfiles()
	require.Contains(t, removed, ProfileChange{Module: "httpd", Profile: "default"})

	require.NoError(t, p.Uninstall("httpd", "2.4", "doc", true))
	e = p.Entry("httpd")
	require.Empty(t, e.Profiles)
	require.Equal(t, StateEnabled, e.State)
}

// S4: multi-stream rejection.
func TestMultiStreamRejection(t *testing.T) {
	p := newTestPersistor(t, 10)
	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Save())

	before := p.Entry("httpd")
	err := p.Enable("httpd", "2.2", true)
	require.ErrorIs(t, err, ErrEnableMultipleStreams)
	require.Equal(t, before, p.Entry("httpd"))
}

// S5: change budget.
func TestChangeBudgetExceeded(t *testing.T) {
	p := newTestPersistor(t, 2)
	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Disable("httpd", true))
	err := p.Enable("httpd", "2.4", true)
	require.ErrorIs(t, err, ErrModifyLimitExceeded)
}

func TestChangeBudgetResetsOnSave(t *testing.T) {
	p := newTestPersistor(t, 2)
	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Disable("httpd", true))
	require.NoError(t, p.Save())

	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Disable("httpd", true))
}

func TestSaveIdempotent(t *testing.T) {
	p := newTestPersistor(t, 2)
	require.NoError(t, p.Enable("httpd", "2.4", true))
	require.NoError(t, p.Save())
	require.NoError(t, p.Save())
	require.False(t, p.IsChanged())
}

func TestCountFalseBypassesBudget(t *testing.T) {
	p := newTestPersistor(t, 1)
	require.NoError(t, p.Enable("httpd", "2.4", false))
	require.NoError(t, p.Disable("httpd", false))
	require.NoError(t, p.Enable("httpd", "2.4", false))
	require.NoError(t, p.Disable("httpd", false))
	e := p.Entry("httpd")
	require.Equal(t, uint32(0), e.StreamChangeCount)
}

func TestDisabledEntryHasNoStreamOrProfiles(t *testing.T) {
	p := newTestPersistor(t, 5)
	require.NoError(t, p.Install("httpd", "2.4", "default", true))
	require.NoError(t, p.Disable("httpd", true))
	e := p.Entry("httpd")
	require.Equal(t, StateDisabled, e.State)
	require.Empty(t, e.Stream)
	require.Empty(t, e.Profiles)
}
