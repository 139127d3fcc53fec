package compileinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	info := fromBuildInfo(&debug.BuildInfo{
		GoVersion: "go1.18",
		Path:      "github.com/carbocation/contourbatch/cmd/contourbatch",
		Main:      debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2022-01-01T00:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	if info.Commit != "abc123" || !info.Modified {
		t.Errorf("Unexpected %+v", info)
	}

	s := info.String()
	if strings.Contains(s, "(devel)") {
		t.Errorf("Expected the devel version to be omitted: %s", s)
	}
	if !strings.Contains(s, "commit abc123") || !strings.Contains(s, "uncommitted") {
		t.Errorf("Unexpected description: %s", s)
	}
}

func TestEmptyString(t *testing.T) {
	if s := (CompileInfo{}).String(); !strings.Contains(s, "unavailable") {
		t.Error(s)
	}
}
