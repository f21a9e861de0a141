package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jangala-dev/tinygo-usart/internal/trace"
	"github.com/jangala-dev/tinygo-usart/usart"
)

var cfgFile string

var logger = log.New(os.Stderr, "usartsim: ", log.LstdFlags|log.Lmicroseconds)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "usartsim",
	Short: "Exercise the usart driver on a simulated board",
	Long: `usartsim runs the interrupt-driven usart driver against a host-side
model of a four-channel USART microcontroller.

Settings come from flags, from usartsim.yaml (current directory or
$HOME/.config) and from USARTSIM_* environment variables, in that order
of precedence.

Examples:
  usartsim selftest --port 2
  usartsim bridge --baud 9600
  usartsim top --interval 250ms`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./usartsim.yaml)")
	pf.IntP("port", "p", 1, "port number (1-3)")
	pf.Uint32P("baud", "b", 115200, "baud rate")
	pf.Uint8("databits", 8, "data bits (5-8)")
	pf.Uint8("stopbits", 1, "stop bits (1 or 2)")
	pf.String("parity", "none", "parity: none, even, odd")
	pf.Bool("trace", false, "log every byte the interrupt handlers move")
	pf.Duration("interval", 500*time.Millisecond, "refresh and traffic interval")

	for _, name := range []string{"port", "baud", "databits", "stopbits", "parity", "trace", "interval"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config")
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("usartsim")
	}

	viper.SetEnvPrefix("usartsim")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Println("using config file:", viper.ConfigFileUsed())
	}
}

// lineConfig builds the port configuration from the merged settings.
func lineConfig() (usart.Config, error) {
	cfg := usart.Config{
		BaudRate: viper.GetUint32("baud"),
		DataBits: uint8(viper.GetUint("databits")),
		StopBits: uint8(viper.GetUint("stopbits")),
	}
	switch strings.ToLower(viper.GetString("parity")) {
	case "none", "n", "":
		cfg.Parity = usart.ParityNone
	case "even", "e":
		cfg.Parity = usart.ParityEven
	case "odd", "o":
		cfg.Parity = usart.ParityOdd
	default:
		return cfg, fmt.Errorf("unknown parity: %s (valid: none, even, odd)", viper.GetString("parity"))
	}
	return cfg, nil
}

// selectedPort returns the port named by the "port" setting.
func selectedPort() (int, *usart.Device, error) {
	n := viper.GetInt("port")
	ports := usart.Ports()
	if n < 1 || n > len(ports) {
		return 0, nil, fmt.Errorf("no port %d (valid: 1-%d)", n, len(ports))
	}
	return n, ports[n-1], nil
}

// openPort initializes and enables the selected port.
func openPort() (int, *usart.Device, error) {
	n, d, err := selectedPort()
	if err != nil {
		return 0, nil, err
	}
	cfg, err := lineConfig()
	if err != nil {
		return 0, nil, err
	}
	if err := d.Initialize(cfg); err != nil {
		return 0, nil, fmt.Errorf("initialize port %d: %w", n, err)
	}
	d.Enable()
	return n, d, nil
}

// startTrace installs a trace recorder when tracing is enabled. The
// returned stop function removes it and waits for the log to drain.
func startTrace(ctx context.Context) (stop func()) {
	if !viper.GetBool("trace") {
		return func() {}
	}
	r := trace.New(1024)
	usart.SetHook(r)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Log(ctx, logger)
	}()
	return func() {
		usart.SetHook(nil)
		cancel()
		<-done
	}
}
