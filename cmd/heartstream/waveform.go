package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/heartstream/internal/source"
)

func newWaveformCmd() *cobra.Command {
	var (
		bpm      float64
		beats    int
		rate     int
		output   string
		plotPath string
	)
	cmd := &cobra.Command{
		Use:   "waveform",
		Short: "Dump the synthetic heartbeat table",
		Long: "Generate the PQRST table replayed by the synthetic source and write it as CSV " +
			"(index,time_ms,adc), or render it to a PNG with --plot.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := source.GenerateHeartbeat(source.DefaultShape(), source.DefaultADCModel(), bpm, rate, beats)
			if err != nil {
				return err
			}

			if plotPath != "" {
				title := fmt.Sprintf("Synthetic ECG, %.0f bpm at %d Hz", bpm, rate)
				if err := plotWaveform(table, rate, title, plotPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d samples to %s\n", len(table), plotPath)
				return nil
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return writeWaveformCSV(w, table, rate)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&bpm, "bpm", 60, "heart rate in beats per minute")
	flags.IntVar(&beats, "beats", 3, "number of beats to generate")
	flags.IntVar(&rate, "rate", 250, "sample rate in Hz")
	flags.StringVarP(&output, "output", "o", "-", "CSV output file (- for stdout)")
	flags.StringVar(&plotPath, "plot", "", "render a PNG to this path instead of writing CSV")
	return cmd
}

func writeWaveformCSV(w io.Writer, table []uint16, rate int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "time_ms", "adc"}); err != nil {
		return err
	}
	for i, v := range table {
		ms := float64(i) * 1000 / float64(rate)
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(ms, 'f', -1, 64),
			strconv.Itoa(int(v)),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func plotWaveform(table []uint16, rate int, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "ADC code"
	p.Y.Min = 0
	p.Y.Max = source.MaxSample

	pts := make(plotter.XYs, len(table))
	for i, v := range table {
		pts[i].X = float64(i) / float64(rate)
		pts[i].Y = float64(v)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(plotter.NewGrid(), line)

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
