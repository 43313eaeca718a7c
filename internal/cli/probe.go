package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eightd/eightd/internal/probe"
)

// newProbeCmd creates the 'probe' command.
func newProbeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe FILE...",
		Short: "Show format, sample rate, channels and duration of audio files",
		Long: `Read stream metadata from MP3, WAV and Ogg Vorbis files.

This is informational only. Files the probe cannot read can still be
processed; the service decides what it accepts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed int

			type entry struct {
				File  string      `json:"file"`
				Info  *probe.Info `json:"info,omitempty"`
				Error string      `json:"error,omitempty"`
			}
			var entries []entry

			for _, path := range args {
				info, err := probe.File(path)
				if err != nil {
					failed++
					GetLogger().Debug().Err(err).Str("file", path).Msg("Probe failed")
				}
				if asJSON {
					e := entry{File: path, Info: info}
					if err != nil {
						e.Error = err.Error()
					}
					entries = append(entries, e)
					continue
				}
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
				} else {
					fmt.Fprintf(out, "%s: %s\n", path, info)
				}
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(entries); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) could not be probed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}
