package main

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jangala-dev/tinygo-usart/internal/trace"
	"github.com/jangala-dev/tinygo-usart/internal/tui"
	"github.com/jangala-dev/tinygo-usart/usart"
)

// topCmd represents the top command
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show live per-port statistics while traffic runs",
	Long: `Loop every simulated port back on itself, run a line of traffic through
each one per interval and show byte counts, buffer levels, dropped bytes
and line errors as they change.

Examples:
  usartsim top
  usartsim top --interval 100ms --parity even`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := lineConfig()
		if err != nil {
			return err
		}
		interval := viper.GetDuration("interval")
		if interval <= 0 {
			interval = 500 * time.Millisecond
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		rec := trace.New(0)
		usart.SetHook(rec)
		defer usart.SetHook(nil)

		gen, err := startTraffic(ctx, cfg, interval)
		if err != nil {
			return err
		}
		defer gen.stop()

		m := newTopModel(rec, gen, interval)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(topCmd)
}

// traffic loops every port back and keeps lines flowing through it.
type traffic struct {
	ports  []*usart.Device
	bursts []chan struct{}
	paused atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

func startTraffic(ctx context.Context, cfg usart.Config, interval time.Duration) (*traffic, error) {
	board := usart.SimBoard()
	ports := usart.Ports()
	for i, d := range ports {
		if err := d.Initialize(cfg); err != nil {
			return nil, err
		}
		d.Enable()
		board.Connect(i+1, i+1)
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &traffic{ports: ports, cancel: cancel, done: make(chan struct{})}
	running := make(chan struct{}, 2*len(ports))
	for i, d := range ports {
		t.bursts = append(t.bursts, make(chan struct{}, 1))
		go t.write(ctx, i+1, d, interval, running)
		go t.read(ctx, d, running)
	}
	go func() {
		for i := 0; i < 2*len(ports); i++ {
			<-running
		}
		close(t.done)
	}()
	return t, nil
}

func (t *traffic) write(ctx context.Context, n int, d *usart.Device, interval time.Duration, exit chan<- struct{}) {
	defer func() { exit <- struct{}{} }()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	burst := make([]byte, 4*d.RxBuffer.Size())
	for j := range burst {
		burst[j] = 'A' + byte(j%26)
	}
	var seq uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.bursts[n-1]:
			d.Transmit(burst)
			continue
		case <-tick.C:
		}
		if t.paused.Load() {
			continue
		}
		d.TransmitString("usart" + strconv.Itoa(n) + " seq ")
		d.TransmitUdec(seq)
		d.TransmitString("\r\n")
		seq++
	}
}

func (t *traffic) read(ctx context.Context, d *usart.Device, exit chan<- struct{}) {
	defer func() { exit <- struct{}{} }()
	buf := make([]byte, 16)
	for {
		if _, err := d.ReadContext(ctx, buf); err != nil {
			return
		}
		// Read slower than the line so bursts overrun the ring.
		time.Sleep(time.Millisecond)
	}
}

// burst asks the writer of port i to send four ring-fulls at once.
func (t *traffic) burst(i int) {
	select {
	case t.bursts[i] <- struct{}{}:
	default:
	}
}

func (t *traffic) stop() {
	t.cancel()
	<-t.done
	board := usart.SimBoard()
	for i, d := range t.ports {
		board.USART(i + 1).OnWire(nil)
		d.Disable()
	}
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// topModel represents the Bubble Tea model for the top command
type topModel struct {
	rec      *trace.Recorder
	gen      *traffic
	interval time.Duration

	table *tui.StatsTable
	help  help.Model
	keys  tui.TopKeys
	width int
}

func newTopModel(rec *trace.Recorder, gen *traffic, interval time.Duration) *topModel {
	m := &topModel{
		rec:      rec,
		gen:      gen,
		interval: interval,
		table:    tui.NewStatsTable(len(gen.ports) + 2),
		help:     help.New(),
		keys:     tui.NewTopKeys(),
	}
	m.refresh()
	return m
}

func (m *topModel) refresh() {
	stats := make([]tui.PortStats, len(m.gen.ports))
	for i, d := range m.gen.ports {
		c := m.rec.Snapshot(d.Channel())
		stats[i] = tui.PortStats{
			Port:      i + 1,
			Config:    d.Config(),
			Tx:        c.Tx,
			Rx:        c.Rx,
			Available: d.Available(),
			TxQueued:  d.TxBuffer.Count(),
			Dropped:   d.RxBuffer.Dropped(),
			Errors:    d.LineErrors(),
		}
	}
	m.table.SetStats(stats)
}

func (m *topModel) Init() tea.Cmd {
	return tick(m.interval)
}

func (m *topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		m.refresh()
		return m, tick(m.interval)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Pause):
			m.gen.paused.Store(!m.gen.paused.Load())
		case key.Matches(msg, m.keys.Burst):
			m.gen.burst(m.table.Selected())
		case key.Matches(msg, m.keys.Reset):
			d := m.gen.ports[m.table.Selected()]
			d.ResetRX()
			d.ResetTX()
			m.refresh()
		default:
			return m, m.table.Update(msg)
		}
	}
	return m, nil
}

func (m *topModel) View() string {
	var b strings.Builder

	status := tui.RunningStyle.Render("RUNNING")
	if m.gen.paused.Load() {
		status = tui.PausedStyle.Render("PAUSED")
	}
	title := tui.TitleStyle.Render("usartsim top")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, title, " ", status,
		" every "+m.interval.String()))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if lost := m.rec.Lost(); lost > 0 {
		b.WriteString(tui.ErrorStyle.Render(strconv.FormatUint(lost, 10) + " trace events lost"))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
