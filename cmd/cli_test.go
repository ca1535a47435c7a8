package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/samaelod/paesim/capture"
	"github.com/samaelod/paesim/config"
	"github.com/samaelod/paesim/protocol"
	"github.com/samaelod/paesim/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitWritesLoadableScenario(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"default.lua", "default.toml"} {
		t.Run(name, func(t *testing.T) {
			initForce = false
			path := filepath.Join(dir, "scenarios", name)
			if _, err := execute(t, "init", path); err != nil {
				t.Fatalf("init: %v", err)
			}
			cfg, err := config.LoadScenario(path)
			if err != nil {
				t.Fatalf("LoadScenario: %v", err)
			}
			if len(cfg.Sessions) != 2 || cfg.Sessions[1].Pattern != types.PatternLong {
				t.Fatalf("sessions=%+v", cfg.Sessions)
			}

			if _, err := execute(t, "init", path); err == nil {
				t.Fatalf("second init overwrote %s", path)
			}
			if _, err := execute(t, "init", "--force", path); err != nil {
				t.Fatalf("init --force: %v", err)
			}
		})
	}
}

func TestDecodeCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcap")
	w, err := capture.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := types.DefaultConfig().Sessions[0]
	start := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		payload, err := protocol.Encode(protocol.Frame{
			Header: protocol.Header{Sequence: uint16(i), Source: protocol.PAEAddress, Destination: protocol.AFFCARAddress},
			Body:   protocol.NewCountdown(true, false, 10, protocol.ColorNotBlocked),
		})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := w.WriteDatagram(start.Add(time.Duration(i)*100*time.Millisecond), s, payload); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := execute(t, "decode", "--hex", path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := strings.Count(out, "type=countdown"); got != 3 {
		t.Fatalf("decoded %d countdowns:\n%s", got, out)
	}
	if !strings.Contains(out, "seq=2") || !strings.Contains(out, "+100ms") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestRunScenario(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	dir := t.TempDir()
	scenario := filepath.Join(dir, "fast.toml")
	body := "[globals]\ntick_ms = 1\n\n[[sessions]]\nid = 7\nname = \"fast\"\nhost = \"127.0.0.1\"\n" +
		"port = " + strconv.Itoa(port) + "\naffcar1 = true\npattern = \"short\"\n"
	if err := os.WriteFile(scenario, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pcap := filepath.Join(dir, "out.pcap")

	*runOpts = runOptions{}
	out, err := execute(t, "run", "--no-log-file", "--capture", pcap, scenario)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "completed") || !strings.Contains(out, "fast") {
		t.Fatalf("summary:\n%s", out)
	}

	records, err := capture.Read(pcap, capture.Filter{})
	if err != nil {
		t.Fatalf("capture.Read: %v", err)
	}
	if len(records) != 60 {
		t.Fatalf("captured %d datagrams", len(records))
	}
}

func TestRunUnknownSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.lua")
	initForce = false
	if _, err := execute(t, "init", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	*runOpts = runOptions{}
	if _, err := execute(t, "run", "--no-log-file", "--session", "9", path); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}
