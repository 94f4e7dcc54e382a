package defaults

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeProfilesUnion(t *testing.T) {
	s := New()
	s.Add(Document{Module: "httpd", Profiles: map[string][]string{"2.4": {"default"}}})
	s.Add(Document{Module: "httpd", Profiles: map[string][]string{"2.4": {"doc"}}})

	require.ElementsMatch(t, []string{"default", "doc"}, s.GetDefaultProfiles("httpd", "2.4"))
}

func TestConflictingDefaultStreamIsDropped(t *testing.T) {
	s := New()
	p1 := s.Add(Document{Module: "httpd", DefaultStream: "2.4"})
	require.Empty(t, p1)
	require.Equal(t, "2.4", s.GetDefaultStream("httpd", ""))

	p2 := s.Add(Document{Module: "httpd", DefaultStream: "2.2"})
	require.Len(t, p2, 1)
	require.Equal(t, ErrorInDefaults, p2[0].Kind)
	require.Equal(t, "", s.GetDefaultStream("httpd", ""))
}

func TestIntentOverridesDefaultStream(t *testing.T) {
	s := New()
	s.Add(Document{Module: "httpd", DefaultStream: "2.4"})
	s.Add(Document{Module: "httpd", Intents: map[string]string{"myintent": "2.6"}})

	require.Equal(t, "2.6", s.GetDefaultStream("httpd", "myintent"))
	require.Equal(t, "2.4", s.GetDefaultStream("httpd", ""))
}

func TestAgreeingDefaultStreamIsNotConflict(t *testing.T) {
	s := New()
	s.Add(Document{Module: "httpd", DefaultStream: "2.4"})
	p := s.Add(Document{Module: "httpd", DefaultStream: "2.4"})
	require.Empty(t, p)
	require.Equal(t, "2.4", s.GetDefaultStream("httpd", ""))
}
