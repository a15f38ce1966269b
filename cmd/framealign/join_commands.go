package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"framealign/internal/joinmap"
)

func newJoinCommand() *cobra.Command {
	joinCmd := &cobra.Command{
		Use:         "join",
		Short:       "Join file utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	joinCmd.AddCommand(newJoinValidateCommand())
	return joinCmd
}

func newJoinValidateCommand() *cobra.Command {
	var (
		mainFrames int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse a join file and report how it splices the main clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mainFrames < 0 {
				return fmt.Errorf("--main-frames must not be negative (got %d)", mainFrames)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open join file: %w", err)
			}
			defer f.Close()

			m, err := joinmap.Parse(f, mainFrames)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			p := newStatusPrinter(out)
			p.section("Join file")
			p.line("Entries", statusOK, strconv.Itoa(len(m.Entries())))
			p.line("Output frames", statusInfo, strconv.Itoa(m.Len()))
			p.line("Extra clips", statusInfo, strconv.Itoa(m.Sources()))
			if verbose {
				rows := make([][]string, 0, len(m.Entries()))
				for _, e := range m.Entries() {
					rows = append(rows, []string{
						strconv.Itoa(e.Target),
						strconv.Itoa(e.Source),
						strconv.Itoa(e.Frame),
						e.Marker,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Target", "Source", "Frame", "Marker"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
				))
			}
			fmt.Fprintln(out, "Join file valid")
			return nil
		},
	}

	cmd.Flags().IntVar(&mainFrames, "main-frames", 0, "Number of frames in the main clip")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every entry")
	return cmd
}
