//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jangala-dev/tinygo-usart/internal/bridge"
	"github.com/jangala-dev/tinygo-usart/usart"
)

var bridgeUpper bool

// bridgeCmd represents the bridge command
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Expose a simulated port on a pseudo-terminal",
	Long: `Attach the far end of the selected port's line to a pseudo-terminal.
Anything a host program writes to the pty arrives at the port's receiver,
and everything the port transmits appears on the pty. The port runs an
echo loop so the link can be tried with any serial terminal.

Press Ctrl+C to stop.

Examples:
  usartsim bridge
  usartsim bridge --port 2 --upper --trace`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, d, err := openPort()
		if err != nil {
			return err
		}
		b, err := bridge.Open(usart.SimBoard().USART(n), viper.GetUint32("baud"))
		if err != nil {
			return err
		}
		defer b.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		stop := startTrace(ctx)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "port %d bridged to %s\n", n, b.Name())
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return b.Run(ctx) })
		g.Go(func() error { return echoLoop(ctx, d, bridgeUpper) })
		err = g.Wait()

		if dropped := b.Dropped(); dropped > 0 {
			logger.Printf("%d transmitted bytes dropped by the bridge", dropped)
		}
		return err
	},
}

// echoLoop sends back everything the port receives until ctx is done.
func echoLoop(ctx context.Context, d *usart.Device, upper bool) error {
	buf := make([]byte, 64)
	for {
		n, err := d.ReadContext(ctx, buf)
		if err != nil {
			return nil
		}
		if upper {
			for i, c := range buf[:n] {
				if c >= 'a' && c <= 'z' {
					buf[i] = c - 'a' + 'A'
				}
			}
		}
		d.Transmit(buf[:n])
	}
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().BoolVarP(&bridgeUpper, "upper", "u", false, "echo letters in upper case")
}
