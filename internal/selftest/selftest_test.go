package selftest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-usart/usart"
)

func TestRun_SimulatedLoopback(t *testing.T) {
	board := usart.SimBoard()
	d := usart.USART1
	require.NoError(t, d.Initialize(usart.DefaultConfig()))
	d.Enable()
	board.Connect(1, 1)
	t.Cleanup(func() {
		board.USART(1).OnWire(nil)
		d.Disable()
		d.ResetRX()
		d.ResetTX()
	})

	var failed []string
	pass, fail := Run(d, func(name, msg string) {
		if msg != "" {
			failed = append(failed, name+": "+msg)
		}
	})
	assert.Empty(t, failed)
	assert.Equal(t, len(Cases()), pass)
	assert.Zero(t, fail)
}

func TestRun_DetectsBrokenWire(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out every case timeout")
	}
	d := usart.USART2
	require.NoError(t, d.Initialize(usart.DefaultConfig()))
	d.Enable()
	t.Cleanup(func() {
		d.Disable()
		d.ResetTX()
	})

	var names []string
	_, fail := Run(d, func(name, msg string) {
		if msg != "" {
			names = append(names, name)
		}
	})
	assert.Positive(t, fail, "nothing loops back without a connection")
	assert.Contains(t, names, "sanity: short loopback")
}
