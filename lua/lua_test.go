package lua

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samaelod/paesim/types"
)

const scenario = `
local config = {}

config.globals = {
	tick_ms = 50,
	listen = "127.0.0.1:61440",
}

config.sessions = {
	{
		id = 1,
		name = "rl2b71",
		host = "172.40.0.41",
		affcar1 = true,
		pattern = "short",
	},
	{
		id = 2,
		host = "10.0.0.9",
		port = 7000,
		source_address = 17,
		destination_address = 18,
		ack_required = true,
		affcar2 = true,
		pattern = "long",
		burst = 20,
		start = 8,
	},
}

return config
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadLuaConfig(t *testing.T) {
	cfg, err := ReadLuaConfig(writeFile(t, "scenario.lua", scenario))
	if err != nil {
		t.Fatalf("ReadLuaConfig: %v", err)
	}
	if cfg.Globals.TickMs != 50 || cfg.Globals.Listen != "127.0.0.1:61440" {
		t.Fatalf("globals=%+v", cfg.Globals)
	}
	if cfg.Globals.LogLines != 1000 {
		t.Fatalf("log_lines default not applied: %d", cfg.Globals.LogLines)
	}
	if len(cfg.Sessions) != 2 {
		t.Fatalf("sessions=%d", len(cfg.Sessions))
	}

	s1 := cfg.Sessions[0]
	if s1.ID != 1 || s1.Name != "rl2b71" || !s1.AFFCAR1 || s1.AFFCAR2 {
		t.Fatalf("session 1=%+v", s1)
	}
	if s1.Port != 61440 || s1.SourceAddress != 5121 || s1.DestinationAddress != 1100 || s1.InitialCountdown() != 10 {
		t.Fatalf("session 1 defaults=%+v", s1)
	}

	s2 := cfg.Sessions[1]
	if s2.Port != 7000 || s2.SourceAddress != 17 || s2.DestinationAddress != 18 {
		t.Fatalf("session 2 addressing=%+v", s2)
	}
	if !s2.AckRequired || !s2.AFFCAR2 || s2.Pattern != types.PatternLong || s2.Burst != 20 || s2.InitialCountdown() != 8 {
		t.Fatalf("session 2=%+v", s2)
	}
}

func TestReadLuaConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"not_a_table", `return 42`, "did not return a table"},
		{"syntax", `return {`, ""},
		{"bad_host", `return { sessions = { { id = 1, host = "bad host" } } }`, "invalid host"},
		{"bad_pattern", `return { sessions = { { id = 1, host = "a", pattern = "medium" } } }`, "invalid traffic pattern"},
		{"negative_tick", `return { globals = { tick_ms = -1 } }`, "tick period"},
		{"duplicate", `return { sessions = { { id = 1, host = "a" }, { id = 1, host = "b" } } }`, "duplicate session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLuaString(tt.src)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	in, err := ReadLuaString(scenario)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteConfig(&buf, in); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	out, err := ReadLuaString(buf.String())
	if err != nil {
		t.Fatalf("re-read: %v\n%s", err, buf.String())
	}
	if out.Globals != in.Globals {
		t.Fatalf("globals changed: %+v != %+v", out.Globals, in.Globals)
	}
	if len(out.Sessions) != len(in.Sessions) {
		t.Fatalf("sessions=%d want %d", len(out.Sessions), len(in.Sessions))
	}
	for i := range in.Sessions {
		if !sameSession(out.Sessions[i], in.Sessions[i]) {
			t.Errorf("session %d changed:\n got=%+v\nwant=%+v", i, out.Sessions[i], in.Sessions[i])
		}
	}
}

func TestSaveToRecent(t *testing.T) {
	recent := filepath.Join(t.TempDir(), "recent")
	src := writeFile(t, "night.lua", scenario)
	cfg, err := ReadLuaConfig(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	first, err := SaveToRecent(cfg, src, recent)
	if err != nil {
		t.Fatalf("SaveToRecent: %v", err)
	}
	if filepath.Base(first) != "night_1.lua" {
		t.Fatalf("first=%s", first)
	}
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(data) != scenario {
		t.Fatalf("lua source not copied verbatim")
	}

	// non-lua sources are rendered
	second, err := SaveToRecent(cfg, "night.toml", recent)
	if err != nil {
		t.Fatalf("SaveToRecent: %v", err)
	}
	if filepath.Base(second) != "night_2.lua" {
		t.Fatalf("second=%s", second)
	}
	if _, err := ReadLuaConfig(second); err != nil {
		t.Fatalf("rendered copy does not load: %v", err)
	}
}

// sameSession compares sessions by value, including the start they resolve to.
func sameSession(a, b types.Session) bool {
	if a.InitialCountdown() != b.InitialCountdown() {
		return false
	}
	a.Start, b.Start = nil, nil
	return a == b
}
