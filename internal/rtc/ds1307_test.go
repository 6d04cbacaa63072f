package rtc

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

// fakeBus 模拟挂在总线上的若干寄存器型设备
type fakeBus struct {
	mu      sync.Mutex
	devices map[uint16]*[64]byte
	ptr     map[uint16]byte
	fail    error
	writes  [][]byte
}

func newFakeBus(addrs ...uint16) *fakeBus {
	b := &fakeBus{devices: map[uint16]*[64]byte{}, ptr: map[uint16]byte{}}
	for _, a := range addrs {
		b.devices[a] = &[64]byte{}
	}
	return b
}

func (b *fakeBus) String() string                   { return "fake-i2c" }
func (b *fakeBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	regs, ok := b.devices[addr]
	if !ok {
		return errors.New("no ack")
	}
	if len(w) > 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
		p := w[0]
		for _, v := range w[1:] {
			regs[p] = v
			p++
		}
		b.ptr[addr] = w[0]
	}
	p := b.ptr[addr]
	for i := range r {
		r[i] = regs[p]
		p++
	}
	return nil
}

func TestBCD(t *testing.T) {
	for n := 0; n < 100; n++ {
		assert.Equal(t, n, BCDToInt(IntToBCD(n)))
	}
	assert.Equal(t, byte(0x59), IntToBCD(59))
	assert.Equal(t, 23, BCDToInt(0x23))
}

func TestSetThenRead(t *testing.T) {
	bus := newFakeBus(DefaultAddress)
	d := New(bus, 0, time.UTC)

	want := time.Date(2024, time.March, 17, 21, 45, 30, 0, time.UTC) // 周日
	require.NoError(t, d.Set(want))

	require.Len(t, bus.writes, 1)
	assert.Equal(t, []byte{0x00, 0x30, 0x45, 0x21, 0x07, 0x17, 0x03, 0x24}, bus.writes[0])

	got, err := d.Read()
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "got %v", got)

	halted, err := d.Halted()
	require.NoError(t, err)
	assert.False(t, halted)
}

func TestReadMasksControlBits(t *testing.T) {
	bus := newFakeBus(DefaultAddress)
	regs := bus.devices[DefaultAddress]
	copy(regs[:], []byte{0x05, 0x10, 0x40 | 0x08, 0x01, 0x01, 0x01, 0x25})

	d := New(bus, DefaultAddress, time.UTC)
	got, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 1, 8, 10, 5, 0, time.UTC), got)
}

func TestReadHalted(t *testing.T) {
	bus := newFakeBus(DefaultAddress)
	bus.devices[DefaultAddress][0] = 0x80

	d := New(bus, DefaultAddress, time.UTC)
	_, err := d.Read()
	assert.ErrorIs(t, err, ErrNotRunning)

	halted, err := d.Halted()
	require.NoError(t, err)
	assert.True(t, halted)
}

func TestBusError(t *testing.T) {
	bus := newFakeBus(DefaultAddress)
	bus.fail = errors.New("i/o error")

	d := New(bus, DefaultAddress, time.UTC)
	_, err := d.Read()
	assert.ErrorContains(t, err, "i/o error")
	assert.Error(t, d.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSetRejectsYear(t *testing.T) {
	d := New(newFakeBus(DefaultAddress), DefaultAddress, time.UTC)
	assert.ErrorIs(t, d.Set(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)), ErrYearOutOfRange)
	assert.ErrorIs(t, d.Set(time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)), ErrYearOutOfRange)
}

func TestSetUsesChipLocation(t *testing.T) {
	bus := newFakeBus(DefaultAddress)
	plus8 := time.FixedZone("UTC+8", 8*3600)
	d := New(bus, DefaultAddress, plus8)

	require.NoError(t, d.Set(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)))
	got, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, 4, got.Hour())
	assert.Equal(t, 2, got.Day())
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(time.Time{}))
	assert.False(t, Valid(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, Valid(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestScan(t *testing.T) {
	bus := newFakeBus(0x3c, DefaultAddress, 0x03)
	found := Scan(bus)
	assert.Equal(t, []uint16{0x3c, 0x68}, found)
	assert.Equal(t, "0x68", FormatAddr(found[1]))
}
