package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/banshee-data/heartstream/internal/telemetry"
	"github.com/banshee-data/heartstream/internal/transport"
)

// monitorReadTimeout bounds each port read so interrupts are noticed.
const monitorReadTimeout = 100 * time.Millisecond

func newMonitorCmd() *cobra.Command {
	var (
		port    string
		baud    int
		start   string
		stopCmd string
		count    int
		samples  bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Decode a device's binary stream from the host side",
		Long: "Open the serial port a device is attached to, send the start command and print " +
			"every decoded packet, reporting sequence gaps. The stop command is sent on exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := transport.PortOptions{BaudRate: baud}.SerialMode()
			if err != nil {
				return err
			}
			p, err := serial.Open(port, mode)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", port, err)
			}
			defer p.Close()
			if err := p.SetReadTimeout(monitorReadTimeout); err != nil {
				return fmt.Errorf("failed to set read timeout: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if start != "" {
				if _, err := io.WriteString(p, start+"\n"); err != nil {
					return fmt.Errorf("failed to send %s: %w", start, err)
				}
			}

			out := cmd.OutOrStdout()
			tracker, err := monitorStream(ctx, p, out, count, samples, interval)
			if stopCmd != "" {
				io.WriteString(p, stopCmd+"\n")
			}
			fmt.Fprintf(out, "# received %d, missing %d, duplicates %d, loss %.2f%%\n",
				tracker.Received, tracker.Missing, tracker.Duplicates, 100*tracker.LossRatio())
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&port, "port", "p", "/dev/ttyUSB0", "serial port the device is attached to")
	flags.IntVar(&baud, "baud", transport.DefaultBaudRate, "serial baud rate")
	flags.StringVar(&start, "start", "START_STREAM", "command sent on open (empty to send nothing)")
	flags.StringVar(&stopCmd, "stop", "STOP_STREAM", "command sent on exit (empty to send nothing)")
	flags.IntVarP(&count, "count", "n", 0, "stop after this many packets (0 runs until interrupted)")
	flags.BoolVar(&samples, "samples", false, "print sample values with their reconstructed capture times")
	flags.DurationVar(&interval, "interval", 4*time.Millisecond, "device sample interval, used to time samples within a packet")
	return cmd
}

// monitorStream decodes packets from r until ctx ends, r reports EOF, or
// limit packets have been printed. A zero-byte read is treated as a timeout.
// With samples set, each value is printed as value@time using interval.
func monitorStream(ctx context.Context, r io.Reader, w io.Writer, limit int, samples bool, interval time.Duration) (telemetry.SequenceTracker, error) {
	var (
		parser  telemetry.Parser
		tracker telemetry.SequenceTracker
		buf     = make([]byte, 512)
		printed int
	)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if n > 0 {
			parser.Write(buf[:n])
			for {
				pkt, ok := parser.Next()
				if !ok {
					break
				}
				if lost := tracker.Observe(pkt.Seq); lost > 0 {
					fmt.Fprintf(w, "# %d packet(s) lost before id %d\n", lost, pkt.Seq)
				}
				fmt.Fprintln(w, formatPacket(pkt, samples, interval))
				printed++
				if limit > 0 && printed >= limit {
					return tracker, nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return tracker, nil
			}
			return tracker, fmt.Errorf("read failed: %w", err)
		}
	}
	return tracker, nil
}

func formatPacket(p telemetry.Packet, samples bool, interval time.Duration) string {
	if !samples {
		return p.String()
	}
	times := p.SampleTimes(interval)
	vals := make([]string, len(p.Samples))
	for i, s := range p.Samples {
		vals[i] = fmt.Sprintf("%d@%v", s, times[i])
	}
	return fmt.Sprintf("%s [%s]", p, strings.Join(vals, " "))
}
