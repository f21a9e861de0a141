package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-usart/internal/selftest"
	"github.com/jangala-dev/tinygo-usart/usart"
)

// selftestCmd represents the selftest command
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the loopback acceptance suite on a simulated port",
	Long: `Wire the selected port's TX line to its own RX line on the simulated
board and run the loopback suite against it. Exits non-zero if any case
fails.

Examples:
  usartsim selftest
  usartsim selftest --port 3 --baud 921600 --trace`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, d, err := openPort()
		if err != nil {
			return err
		}
		board := usart.SimBoard()
		board.Connect(n, n)
		defer board.USART(n).OnWire(nil)

		stop := startTrace(cmd.Context())
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "usart self-test on port %d (%d baud)\n", n, d.Config().BaudRate)
		pass, fail := selftest.Run(d, func(name, msg string) {
			fmt.Fprintf(out, "\n[Test] %s\n", name)
			if msg == "" {
				fmt.Fprintln(out, "  PASS")
			} else {
				fmt.Fprintln(out, "  FAIL:", msg)
			}
		})

		errs := d.LineErrors()
		fmt.Fprintf(out, "\nSummary\n  passed = %d\n  failed = %d\n", pass, fail)
		fmt.Fprintf(out, "  overrun = %d framing = %d parity = %d dropped = %d\n",
			errs.Overrun, errs.Framing, errs.Parity, d.RxBuffer.Dropped())
		if fail > 0 {
			return fmt.Errorf("%d of %d cases failed", fail, pass+fail)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}
