package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samaelod/paesim/capture"
	"github.com/samaelod/paesim/protocol"
)

type decodeOptions struct {
	port int
	hex  bool
}

var decodeOpts = &decodeOptions{}

var decodeCmd = &cobra.Command{
	Use:   "decode <capture>",
	Short: "Decode the PAE/AFFCAR datagrams of a pcap or pcapng file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := capture.Read(args[0], capture.Filter{Port: decodeOpts.port})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, r := range records {
			desc := r.Packet.String()
			if r.Err != nil {
				desc = "malformed: " + r.Err.Error()
			}
			fmt.Fprintf(tw, "%d\t+%dms\t%s -> %s\t%s\n", r.Index, r.TDelta, r.Src, r.Dst, desc)
			if decodeOpts.hex {
				fmt.Fprintf(tw, "\t\t\t%s\n", protocol.Hex(r.Raw))
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().IntVarP(&decodeOpts.port, "port", "p", protocol.DefaultPort, "UDP port to keep, 0 for all")
	decodeCmd.Flags().BoolVar(&decodeOpts.hex, "hex", false, "print raw payload bytes")
}
