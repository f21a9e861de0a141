package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jangala-dev/tinygo-usart/usart"
)

// PortStats is one row of the statistics view.
type PortStats struct {
	Port      int
	Config    usart.Config
	Tx, Rx    uint64
	Available int
	TxQueued  int
	Dropped   uint32
	Errors    usart.LineErrors
}

// StatsTable renders per-port counters.
type StatsTable struct {
	table table.Model
}

var statsColumns = []table.Column{
	{Title: "Port", Width: 6},
	{Title: "Line", Width: 12},
	{Title: "TX bytes", Width: 10},
	{Title: "RX bytes", Width: 10},
	{Title: "RX avail", Width: 8},
	{Title: "TX queued", Width: 9},
	{Title: "Dropped", Width: 8},
	{Title: "ORE", Width: 5},
	{Title: "FE", Width: 5},
	{Title: "PE", Width: 5},
}

func NewStatsTable(height int) *StatsTable {
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(statsColumns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Subtext0).
		BorderBottom(true).
		Bold(true).
		Foreground(Text)
	s.Selected = s.Selected.
		Foreground(Text).
		Background(Surface1).
		Bold(false)
	t.SetStyles(s)

	return &StatsTable{table: t}
}

// SetStats replaces the rows, keeping the cursor.
func (st *StatsTable) SetStats(stats []PortStats) {
	rows := make([]table.Row, len(stats))
	for i, s := range stats {
		rows[i] = FormatRow(s)
	}
	st.table.SetRows(rows)
}

// Selected returns the index of the highlighted row.
func (st *StatsTable) Selected() int { return st.table.Cursor() }

func (st *StatsTable) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	st.table, cmd = st.table.Update(msg)
	return cmd
}

func (st *StatsTable) View() string {
	return TableBorderStyle.Render(st.table.View())
}

// FormatRow renders s as table cells.
func FormatRow(s PortStats) table.Row {
	return table.Row{
		"USART" + strconv.Itoa(s.Port),
		LineSummary(s.Config),
		strconv.FormatUint(s.Tx, 10),
		strconv.FormatUint(s.Rx, 10),
		strconv.Itoa(s.Available),
		strconv.Itoa(s.TxQueued),
		strconv.FormatUint(uint64(s.Dropped), 10),
		strconv.FormatUint(uint64(s.Errors.Overrun), 10),
		strconv.FormatUint(uint64(s.Errors.Framing), 10),
		strconv.FormatUint(uint64(s.Errors.Parity), 10),
	}
}

// LineSummary formats a configuration the usual way, e.g. "115200 8N1".
func LineSummary(c usart.Config) string {
	p := "N"
	switch c.Parity {
	case usart.ParityEven:
		p = "E"
	case usart.ParityOdd:
		p = "O"
	}
	return strconv.FormatUint(uint64(c.BaudRate), 10) + " " +
		strconv.Itoa(int(c.DataBits)) + p + strconv.Itoa(int(c.StopBits))
}
