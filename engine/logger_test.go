package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerRing(t *testing.T) {
	l := NewLogger("", 3)
	defer l.Close()

	for _, s := range []string{"a", "b", "c", "d"} {
		l.Append(s)
	}
	if got := l.ReadAll(); got != "b\nc\nd\n" {
		t.Fatalf("ReadAll=%q", got)
	}
}

func TestLoggerWriteSplitsLines(t *testing.T) {
	l := NewLogger("", 10)
	defer l.Close()

	n, err := l.Write([]byte("one\ntwo\n"))
	if err != nil || n != 8 {
		t.Fatalf("Write=%d, %v", n, err)
	}
	if got := l.ReadAll(); got != "one\ntwo\n" {
		t.Fatalf("ReadAll=%q", got)
	}
	if got := <-l.Chan(); got != "one" {
		t.Fatalf("chan=%q", got)
	}
}

func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l := NewLogger(path, 10)
	l.Append("first")
	l.Append("second")
	l.Close()
	l.Append("dropped")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(data); got != "first\nsecond\n" {
		t.Fatalf("file=%q", got)
	}
	if strings.Contains(l.ReadAll(), "dropped") {
		t.Fatalf("append after close stored")
	}
}

func TestLoggerNil(t *testing.T) {
	var l *Logger
	l.Append("x")
	if l.ReadAll() != "" || l.Chan() != nil {
		t.Fatalf("nil logger not inert")
	}
	l.Close()
}
