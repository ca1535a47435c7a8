package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samaelod/paesim/config"
	"github.com/samaelod/paesim/engine"
	"github.com/samaelod/paesim/types"
)

type runOptions struct {
	sessions []int
	capture  string
	listen   string
	noLog    bool
}

var runOpts = &runOptions{}

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Run the sessions of a scenario headless",
	Long: `Run loads a .lua or .toml scenario and emits its countdown patterns.

Every session runs by default; --session restricts the run to the given ids.
The command returns once each session finished its burst, or on Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntSliceVarP(&runOpts.sessions, "session", "s", nil, "session ids to run (default all)")
	runCmd.Flags().StringVar(&runOpts.capture, "capture", "", "record emitted datagrams to this pcap file")
	runCmd.Flags().StringVar(&runOpts.listen, "listen", "", "UDP address for AFFCAR status and ack packets")
	runCmd.Flags().BoolVar(&runOpts.noLog, "no-log-file", false, "do not write a log file under logs_dir")
}

func runScenario(cmd *cobra.Command, args []string) error {
	appCfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	cfg, err := config.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if runOpts.capture != "" {
		cfg.Globals.Capture = runOpts.capture
	}
	if runOpts.listen != "" {
		cfg.Globals.Listen = runOpts.listen
	}
	cfg.Globals.Capture = appCfg.CapturePath(cfg.Globals.Capture)

	ids, err := selectSessions(cfg, runOpts.sessions)
	if err != nil {
		return err
	}

	logPath := ""
	if !runOpts.noLog {
		base := filepath.Base(args[0])
		logPath = filepath.Join(appCfg.LogsDir, strings.TrimSuffix(base, filepath.Ext(base))+".log")
	}

	e, err := engine.NewEngine(cfg, logPath, engine.WithLogOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, id := range ids {
		if err := e.StartSession(id); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.StopAll()
		<-done
	}

	return printSummary(cmd.OutOrStdout(), cfg, e, ids)
}

func selectSessions(cfg *types.Config, want []int) ([]int, error) {
	if len(want) == 0 {
		ids := make([]int, 0, len(cfg.Sessions))
		for _, s := range cfg.Sessions {
			ids = append(ids, s.ID)
		}
		return ids, nil
	}
	for _, id := range want {
		if cfg.FindSession(id) == nil {
			return nil, fmt.Errorf("session %d not in scenario", id)
		}
	}
	return want, nil
}

func printSummary(w io.Writer, cfg *types.Config, e *engine.Engine, ids []int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPATTERN\tSTATUS\tSENT\tFAILED\tNEXT SEQ\tACK")
	for _, id := range ids {
		s := cfg.FindSession(id)
		st := e.State(id)
		ack := "-"
		if st.AckReceived {
			ack = fmt.Sprintf("code %d", st.LastAckCode)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			id, s.Label(), s.Pattern, st.Status, st.Sent, st.Failed, e.Sequence(id), ack)
	}
	return tw.Flush()
}
