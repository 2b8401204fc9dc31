package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chabad360/bcr2kosc/midiport"
)

func (a *app) portsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI input and output ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ins, err := midiport.InPorts()
			if err != nil {
				return err
			}
			outs, err := midiport.OutPorts()
			if err != nil {
				return err
			}
			printPorts(cmd.OutOrStdout(), ins, outs)
			return nil
		},
	}
}

func printPorts(w io.Writer, ins, outs []string) {
	fmt.Fprintln(w, "Inputs:")
	for _, p := range ins {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintln(w, "Outputs:")
	for _, p := range outs {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
