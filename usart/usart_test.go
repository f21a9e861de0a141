package usart

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-usart/hal"
	"github.com/jangala-dev/tinygo-usart/internal/sim"
)

// newTestPort returns an initialized, enabled port on channel 1 of a fresh
// simulated board, so tests don't touch the package singletons.
func newTestPort(t *testing.T, rxSize, txSize int) (*Device, *sim.Block, *sim.Board) {
	t.Helper()
	b := sim.NewBoard()
	d := newDevice(b.USART(1), b, sim.Clock(1), sim.VectorsOf(1), sim.DefaultPriority, rxSize, txSize)
	require.NoError(t, d.Initialize(DefaultConfig()))
	d.Enable()
	return d, b.USART(1), b
}

func TestInitialize_ProgramsFrameAndDivisor(t *testing.T) {
	b := sim.NewBoard()
	d := newDevice(b.USART(1), b, sim.Clock(1), sim.VectorsOf(1), sim.DefaultPriority, 8, 8)

	require.NoError(t, d.Initialize(Config{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: ParityEven}))

	assert.True(t, b.ClockEnabled(sim.Clock(1)), "clock enabled")
	assert.Equal(t, hal.Frame{DataBits: 7, StopBits: 2, Parity: hal.ParityEven}, b.USART(1).Frame())
	want, err := BaudDivisor(sim.PCLK1, 9600)
	require.NoError(t, err)
	assert.Equal(t, want, b.USART(1).Divisor())
	assert.False(t, d.Regs.Enabled(hal.FuncRx), "data flow must stay disabled until Enable")
	assert.False(t, d.Regs.Enabled(hal.FuncTx))
}

func TestInitialize_DefaultsZeroFields(t *testing.T) {
	d, _, _ := newTestPort(t, 8, 8)
	require.NoError(t, d.Initialize(Config{}))
	assert.Equal(t, DefaultConfig(), d.Config())
}

func TestInitialize_RejectsInvalidConfig(t *testing.T) {
	b := sim.NewBoard()
	d := newDevice(b.USART(1), b, sim.Clock(1), sim.VectorsOf(1), sim.DefaultPriority, 8, 8)

	assert.ErrorIs(t, d.Initialize(Config{DataBits: 9}), ErrInvalidConfig)
	assert.ErrorIs(t, d.Initialize(Config{StopBits: 3}), ErrInvalidConfig)
	assert.ErrorIs(t, d.Initialize(Config{Parity: 7}), ErrInvalidConfig)
	assert.False(t, b.ClockEnabled(sim.Clock(1)), "rejected config must not touch hardware")
}

func TestInitialize_Idempotent(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	cfg := Config{BaudRate: 57600, DataBits: 8, StopBits: 1}

	require.NoError(t, d.Initialize(cfg))
	frame, div := blk.Frame(), blk.Divisor()
	require.NoError(t, d.Initialize(cfg))

	assert.Equal(t, frame, blk.Frame())
	assert.Equal(t, div, blk.Divisor())
	assert.Equal(t, cfg, d.Config())
	assert.False(t, d.Regs.Enabled(hal.FuncRx))

	d.Enable()
	d.TransmitString("ok")
	blk.Deliver('!')
	assert.Equal(t, []byte("ok"), blk.Wire())
	assert.Equal(t, 1, d.Available())
}

func TestSetBaudRate(t *testing.T) {
	b := sim.NewBoard()
	d := newDevice(b.USART(1), b, sim.Clock(1), sim.VectorsOf(1), sim.DefaultPriority, 8, 8)
	assert.ErrorIs(t, d.SetBaudRate(9600), ErrNotInitialized)

	require.NoError(t, d.Initialize(DefaultConfig()))
	d.Enable()
	b.USART(1).Deliver('q')

	require.NoError(t, d.SetBaudRate(9600))
	want, _ := BaudDivisor(sim.PCLK1, 9600)
	assert.Equal(t, want, b.USART(1).Divisor())
	assert.Equal(t, uint32(9600), d.Config().BaudRate)
	assert.Equal(t, 1, d.Available(), "queued bytes survive a baud change")

	assert.ErrorIs(t, d.SetBaudRate(0), ErrInvalidBaudRate)
}

func TestBaudDivisor(t *testing.T) {
	tests := []struct {
		name    string
		clock   uint32
		baud    uint32
		want    hal.Divisor
		wantErr error
	}{
		{"115200 at 50MHz", 50_000_000, 115200, hal.Divisor{Integer: 27, Fraction: 8}, nil},
		{"9600 at 50MHz", 50_000_000, 9600, hal.Divisor{Integer: 325, Fraction: 33}, nil},
		{"clamped low", 50_000_000, 10_000_000, hal.Divisor{Integer: 1}, nil},
		{"clamped high", 125_000_000, 1, hal.Divisor{Integer: 65535}, nil},
		{"zero baud", 50_000_000, 0, hal.Divisor{}, ErrInvalidBaudRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaudDivisor(tt.clock, tt.baud)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransmit_WireMatchesInput(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)

	want := make([]byte, 300)
	for i := range want {
		want[i] = byte(i * 7)
	}
	n := d.Transmit(want)
	assert.Equal(t, len(want), n)
	if diff := cmp.Diff(want, blk.Wire()); diff != "" {
		t.Fatalf("wire mismatch (-want +got):\n%s", diff)
	}
}

func TestTransmit_ThreeBytesThenTxComplete(t *testing.T) {
	d, blk, board := newTestPort(t, 8, 8)
	vec := sim.VectorsOf(1)

	blk.Hold()
	board.Trace(true)
	n := d.Transmit([]byte{0x01, 0x02, 0x03})
	require.Equal(t, 3, n)
	assert.True(t, d.Regs.Enabled(hal.FuncTxEmptyInt), "TX-empty armed while bytes are queued")
	assert.Empty(t, blk.Wire(), "Transmit returns before the wire drains")

	blk.Release()

	assert.Equal(t, []byte{0x01, 0x02, 0x03}, blk.Wire())
	assert.Equal(t, []hal.IRQ{
		vec.TxEmpty, // 0x01 into the data register
		vec.TxEmpty, // 0x02
		vec.TxEmpty, // 0x03
		vec.TxEmpty, // ring empty: switch sources
		vec.TxComplete,
	}, board.Dispatched())
	assert.False(t, d.Regs.Enabled(hal.FuncTxEmptyInt))
	assert.False(t, d.Regs.Enabled(hal.FuncTxCompleteInt), "TX-complete signals exactly once")
}

func TestTransmit_BlocksWhileRingFull(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 4)
	blk.Hold()

	want := []byte("0123456789")
	done := make(chan int, 1)
	go func() { done <- d.Transmit(want) }()

	select {
	case <-done:
		t.Fatal("Transmit returned while the line was stalled")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 4, d.TxBuffer.Count())

	blk.Release()
	select {
	case n := <-done:
		assert.Equal(t, len(want), n)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Transmit")
	}
	require.Eventually(t, func() bool { return len(blk.Wire()) == len(want) },
		time.Second, time.Millisecond)
	assert.Equal(t, want, blk.Wire())
}

func TestTryTransmit_NoSpace(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 4)
	blk.Hold()

	p := []byte("abcdefghij")
	n1 := d.TryTransmit(p)
	assert.Equal(t, 4, n1, "fills the ring; first byte moves to the data register")
	n2 := d.TryTransmit(p[n1:])
	assert.Equal(t, 1, n2)
	assert.Equal(t, 0, d.TryTransmit(p[n1+n2:]))
	assert.Equal(t, 0, d.TxFree())

	blk.Release()
	assert.Equal(t, []byte("abcde"), blk.Wire())
}

func TestTryTransmitChar_ReportsFull(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 2)
	blk.Hold()

	require.NoError(t, d.TryTransmitChar('x'), "goes straight to the data register")
	require.NoError(t, d.TryTransmitChar('y'))
	require.NoError(t, d.TryTransmitChar('z'))
	assert.ErrorIs(t, d.TryTransmitChar('!'), ErrBufferFull)

	blk.Release()
	assert.Equal(t, []byte("xyz"), blk.Wire())
	require.NoError(t, d.TryTransmitChar('!'))
	assert.Equal(t, []byte("xyz!"), blk.Wire())
}

func TestTransmit_QueuedWhileDisabled(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	d.Disable()

	assert.Equal(t, 3, d.TryTransmit([]byte("abc")))
	assert.Empty(t, blk.Wire())

	d.Enable()
	assert.Equal(t, []byte("abc"), blk.Wire())
}

func TestTransmitString_StopsAtNUL(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	d.TransmitString("hi\x00there")
	assert.Equal(t, []byte("hi"), blk.Wire())
}

func TestTransmitUdec(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	d.TransmitUdec(0)
	d.TransmitChar(' ')
	d.TransmitUdec(4294967295)
	assert.Equal(t, "0 4294967295", string(blk.Wire()))
}

func TestWriter(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	n, err := d.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, d.WriteByte('c'))
	assert.Equal(t, []byte("abc"), blk.Wire())
}

func TestReceive_CapacityFourOverwrite(t *testing.T) {
	d, blk, _ := newTestPort(t, 4, 8)
	blk.DeliverAll([]byte{0x41, 0x42, 0x43, 0x44, 0x45})

	buf := make([]byte, 10)
	n := d.Receive(buf)
	assert.Equal(t, []byte{0x42, 0x43, 0x44, 0x45}, buf[:n])
	assert.Equal(t, uint32(1), d.RxBuffer.Dropped())
}

func TestReceive_OverwriteKeepsNewestInOrder(t *testing.T) {
	const size = 8
	d, blk, _ := newTestPort(t, size, 8)

	var sent []byte
	for i := 0; i < 3*size+1; i++ {
		sent = append(sent, byte(100+i))
	}
	blk.DeliverAll(sent)

	buf := make([]byte, 64)
	n := d.Receive(buf)
	if diff := cmp.Diff(sent[len(sent)-size:], buf[:n]); diff != "" {
		t.Fatalf("received mismatch (-want +got):\n%s", diff)
	}
}

func TestAvailable_DecreasesByConsumed(t *testing.T) {
	d, blk, _ := newTestPort(t, 16, 8)
	blk.DeliverAll([]byte("0123456789"))
	require.Equal(t, 10, d.Available())

	for i := 0; i < 3; i++ {
		_, err := d.ReadByte()
		require.NoError(t, err)
	}
	assert.Equal(t, 7, d.Available())

	assert.Equal(t, 4, d.Receive(make([]byte, 4)))
	assert.Equal(t, 3, d.Available())

	assert.Equal(t, 3, d.Receive(make([]byte, 10)))
	assert.Equal(t, 0, d.Available())

	_, err := d.ReadByte()
	assert.ErrorIs(t, err, ErrBufferEmpty)
	assert.Equal(t, 0, d.Available())
}

func TestReader_NonBlocking(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	buf := make([]byte, 8)

	n, err := d.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	blk.DeliverAll([]byte("ABC"))
	n, err = d.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(buf[:n]))
}

func TestReadByte_GatedByAvailable(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	blk.DeliverAll([]byte("hello"))

	var got []byte
	for d.Available() > 0 {
		b, err := d.ReadByte()
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, "hello", string(got))
}

func TestPeekByte(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	_, ok := d.PeekByte()
	assert.False(t, ok)

	blk.DeliverAll([]byte("xy"))
	b, ok := d.PeekByte()
	require.True(t, ok)
	assert.Equal(t, byte('x'), b)
	assert.Equal(t, 2, d.Available())
}

func TestReset_EmptiesBuffers(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	blk.DeliverAll([]byte("stale"))

	d.ResetRX()
	assert.Equal(t, 0, d.Available())
	_, ok := d.PeekByte()
	assert.False(t, ok)
	assert.True(t, d.Regs.Enabled(hal.FuncRx), "reset leaves hardware enabled")

	blk.Hold()
	d.Transmit([]byte("abcd"))
	d.ResetTX()
	assert.Equal(t, 0, d.TxBuffer.Count())
	blk.Release()
	assert.Equal(t, []byte("a"), blk.Wire(), "only the byte already in the data register leaves")
}

func TestDisable_Idempotent(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	blk.DeliverAll([]byte("keep"))

	d.Disable()
	status, avail := blk.Status(), d.Available()
	d.Disable()

	assert.Equal(t, status, blk.Status())
	assert.Equal(t, avail, d.Available())
	for _, f := range []hal.Function{hal.FuncRx, hal.FuncTx, hal.FuncRxInt, hal.FuncTxEmptyInt, hal.FuncTxCompleteInt} {
		assert.False(t, d.Regs.Enabled(f), "function %b", f)
	}

	blk.Deliver('x')
	assert.Equal(t, 4, d.Available(), "disabled receiver takes nothing, buffer is kept")
	assert.Equal(t, 1, blk.Dropped())
}

func TestRxError_CountsAndClears(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)

	blk.DeliverWithError(0x55, hal.StatusFraming)
	assert.Equal(t, LineErrors{Framing: 1}, d.LineErrors())
	assert.Equal(t, 1, d.Available(), "errored byte is still delivered")
	assert.Zero(t, blk.Status()&hal.StatusErrors)

	// Overrun: mask the receive interrupt so the data register stays full.
	blk.SetFunction(hal.FuncRxInt, false)
	blk.Deliver('a')
	blk.Deliver('b')
	blk.SetFunction(hal.FuncRxInt, true)

	assert.Equal(t, uint32(1), d.LineErrors().Overrun)
	assert.Equal(t, 2, d.Available())
	b := make([]byte, 2)
	d.Receive(b)
	assert.Equal(t, []byte{0x55, 'a'}, b)
}

// lateStatus hides error flags from Status, as a register block does when
// its error status lags the interrupt that reports it.
type lateStatus struct {
	hal.Registers
	cleared []hal.Status
}

func (r *lateStatus) Status() hal.Status { return r.Registers.Status() &^ hal.StatusErrors }

func (r *lateStatus) ClearStatus(s hal.Status) {
	r.cleared = append(r.cleared, s)
	r.Registers.ClearStatus(s)
}

func TestRxError_ClearsWhenStatusLags(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	blk.SetFunction(hal.FuncRxInt, false)
	blk.DeliverWithError(0x55, hal.StatusFraming)
	require.NotZero(t, blk.Status()&hal.StatusFraming)

	regs := &lateStatus{Registers: blk}
	d.Regs = regs
	d.handleRxError()

	assert.Equal(t, []hal.Status{hal.StatusErrors}, regs.cleared)
	assert.Zero(t, blk.Status()&hal.StatusErrors, "source no longer asserted")
	assert.Equal(t, LineErrors{}, d.LineErrors())
}

func TestDrainTick_FollowsFrame(t *testing.T) {
	d, _, _ := newTestPort(t, 8, 8)
	assert.Equal(t, 2*(10*time.Second/115200), d.drainTick(), "8N1")

	require.NoError(t, d.Initialize(Config{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: ParityEven}))
	assert.Equal(t, 2*(11*time.Second/9600), d.drainTick(), "7E2")

	require.NoError(t, d.SetBaudRate(4000000))
	assert.Equal(t, 20*time.Microsecond, d.drainTick(), "floor")
}

func TestFlush_WaitsForDrain(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)
	blk.Hold()
	d.TransmitString("abc")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Flush(ctx), context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		blk.Release()
	}()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, d.Flush(ctx2))
	assert.Equal(t, []byte("abc"), blk.Wire())
}

func TestReadContext_UnblocksOnData(t *testing.T) {
	d, blk, _ := newTestPort(t, 8, 8)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	buf := make([]byte, 8)
	var n int
	var err error
	go func() {
		defer close(done)
		n, err = d.ReadContext(ctx, buf)
	}()

	time.Sleep(20 * time.Millisecond)
	blk.DeliverAll([]byte("xyz"))

	select {
	case <-done:
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for ReadContext")
	}
	require.NoError(t, err)
	assert.Equal(t, "xyz"[:n], string(buf[:n]))
	assert.Positive(t, n)
}

func TestReadByteContext_Timeout(t *testing.T) {
	d, _, _ := newTestPort(t, 8, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.ReadByteContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannelOf(t *testing.T) {
	assert.Equal(t, Channel1, USART1.Channel())
	assert.Equal(t, Channel2, ChannelOf(USART2.Regs))
	assert.Equal(t, Channel3, ChannelOf(USART3.Regs))
	assert.Equal(t, Channel4, ChannelOf(SimBoard().USART(4)))

	assert.Equal(t, ChannelUnknown, ChannelOf(sim.NewBoard().USART(1)))
	assert.Equal(t, ChannelUnknown, ChannelOf(nil))
}

type byteEvent struct {
	tx bool
	b  byte
	ch Channel
}

func TestHook_ReportsBytesAndChannel(t *testing.T) {
	board := SimBoard()
	require.NoError(t, USART2.Initialize(DefaultConfig()))
	USART2.Enable()
	board.Connect(2, 2)

	var events []byteEvent
	SetHook(HookFuncs{
		Tx: func(b byte, ch Channel) { events = append(events, byteEvent{true, b, ch}) },
		Rx: func(b byte, ch Channel) { events = append(events, byteEvent{false, b, ch}) },
	})
	t.Cleanup(func() {
		SetHook(nil)
		board.USART(2).OnWire(nil)
		USART2.Disable()
		USART2.ResetRX()
	})

	USART2.TransmitString("ok")

	assert.Equal(t, []byteEvent{
		{true, 'o', Channel2}, {false, 'o', Channel2},
		{true, 'k', Channel2}, {false, 'k', Channel2},
	}, events)
	assert.Equal(t, 2, USART2.Available())
}

func TestDisableAll(t *testing.T) {
	for _, d := range Ports() {
		require.NoError(t, d.Initialize(DefaultConfig()))
		d.Enable()
	}
	DisableAll()
	for _, d := range Ports() {
		assert.False(t, d.Regs.Enabled(hal.FuncRx), "%v receiver", d.Channel())
		assert.False(t, d.Regs.Enabled(hal.FuncTx), "%v transmitter", d.Channel())
	}
	assert.Len(t, Ports(), 3)
}
