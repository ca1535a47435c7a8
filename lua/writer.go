package lua

import (
	"fmt"
	"io"

	"github.com/samaelod/paesim/types"
)

// WriteConfig renders cfg as a Lua scenario that ReadLuaConfig accepts.
func WriteConfig(w io.Writer, cfg *types.Config) error {
	ew := &errWriter{w: w}

	ew.println("local config = {}")
	ew.println()

	ew.println("-- GLOBALS ----------------------------------------")
	ew.println("config.globals = {")
	ew.printf("\ttick_ms = %d,\n", cfg.Globals.TickMs)
	ew.printf("\tlisten = %q,\n", cfg.Globals.Listen)
	ew.printf("\tcapture = %q,\n", cfg.Globals.Capture)
	ew.printf("\tlog_lines = %d,\n", cfg.Globals.LogLines)
	ew.printf("\tsend_timeout_ms = %d,\n", cfg.Globals.SendTimeoutMs)
	ew.println("}")
	ew.println()

	ew.println("-- SESSIONS ---------------------------------------")
	ew.println("config.sessions = {")
	for _, s := range cfg.Sessions {
		ew.println("\t{")
		ew.printf("\t\tid = %d,\n", s.ID)
		ew.printf("\t\tname = %q,\n", s.Name)
		ew.printf("\t\thost = %q,\n", s.Host)
		ew.printf("\t\tport = %d,\n", s.Port)
		ew.printf("\t\tsource_host = %q,\n", s.SourceHost)
		ew.printf("\t\tsource_port = %d,\n", s.SourcePort)
		ew.printf("\t\tsource_address = %d,\n", s.SourceAddress)
		ew.printf("\t\tdestination_address = %d,\n", s.DestinationAddress)
		ew.printf("\t\tack_required = %t,\n", s.AckRequired)
		ew.printf("\t\taffcar1 = %t,\n", s.AFFCAR1)
		ew.printf("\t\taffcar2 = %t,\n", s.AFFCAR2)
		ew.printf("\t\tpattern = %q,\n", s.Pattern)
		if s.Burst > 0 {
			ew.printf("\t\tburst = %d,\n", s.Burst)
		}
		ew.printf("\t\tstart = %d,\n", s.InitialCountdown())
		ew.println("\t},")
	}
	ew.println("}")
	ew.println()
	ew.println("return config")

	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) println(args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, args...)
}
