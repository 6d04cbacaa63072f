package timesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNTP struct {
	t   time.Time
	err error
}

func (f *fakeNTP) Time(server string) (time.Time, error) { return f.t, f.err }

// fakeRTC 模拟 DS1307：只保存墙上时间的数字，读出时按当前芯片时区解释
type fakeRTC struct {
	mu      sync.Mutex
	wall    time.Time
	loc     *time.Location
	readErr error
	setErr  error
}

func (r *fakeRTC) Read() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return time.Time{}, r.readErr
	}
	w := r.wall
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, r.loc), nil
}

func (r *fakeRTC) Set(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return r.setErr
	}
	r.wall = t.In(r.loc)
	r.readErr = nil
	return nil
}

func (r *fakeRTC) SetLocation(loc *time.Location) {
	r.mu.Lock()
	r.loc = loc
	r.mu.Unlock()
}

type recordingNotifier struct {
	msgs []string
}

func (n *recordingNotifier) Flash(ctx context.Context, text string, d time.Duration) {
	n.msgs = append(n.msgs, text)
}

func TestZone(t *testing.T) {
	_, off := time.Date(2024, 1, 1, 0, 0, 0, 0, Zone(-5)).Zone()
	assert.Equal(t, -5*3600, off)
	name, _ := time.Date(2024, 1, 1, 0, 0, 0, 0, Zone(8)).Zone()
	assert.Equal(t, "UTC+8", name)
}

func TestSyncRTCWritesLocalTime(t *testing.T) {
	ntpTime := time.Date(2024, 6, 1, 22, 30, 0, 0, time.UTC)
	r := &fakeRTC{}
	clock := NewClock(r, 3)
	n := &recordingNotifier{}
	s := NewSyncer(&fakeNTP{t: ntpTime}, "pool.ntp.org", clock, n)

	require.NoError(t, s.SyncRTC(context.Background()))
	assert.Equal(t, []string{MsgSyncing, MsgTimeSet}, n.msgs)

	now := clock.Now()
	assert.Equal(t, 1, now.Hour())
	assert.Equal(t, 2, now.Day())
	assert.Equal(t, "rtc", clock.Source())
	assert.False(t, s.LastSync().IsZero())
}

func TestSyncRTCFailure(t *testing.T) {
	r := &fakeRTC{}
	n := &recordingNotifier{}
	s := NewSyncer(&fakeNTP{err: errors.New("timeout")}, "pool.ntp.org", NewClock(r, 0), n)

	assert.Error(t, s.SyncRTC(context.Background()))
	assert.Equal(t, []string{MsgSyncing, MsgSyncError}, n.msgs)
	assert.Error(t, s.LastError())

	n.msgs = nil
	r.setErr = errors.New("i2c nack")
	s2 := NewSyncer(&fakeNTP{t: time.Now()}, "x", NewClock(r, 0), n)
	assert.Error(t, s2.SyncRTC(context.Background()))
	assert.Equal(t, []string{MsgSyncing, MsgSyncError}, n.msgs)
}

func TestEnsureValid(t *testing.T) {
	ntpTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid rtc", func(t *testing.T) {
		r := &fakeRTC{}
		clock := NewClock(r, 0)
		r.wall = time.Date(2024, 1, 1, 0, 0, 0, 0, r.loc)
		s := NewSyncer(&fakeNTP{t: ntpTime}, "x", clock, nil)
		synced, err := s.EnsureValid(context.Background())
		require.NoError(t, err)
		assert.False(t, synced)
	})

	t.Run("old year", func(t *testing.T) {
		r := &fakeRTC{}
		clock := NewClock(r, 0)
		r.wall = time.Date(2000, 1, 1, 0, 0, 0, 0, r.loc)
		s := NewSyncer(&fakeNTP{t: ntpTime}, "x", clock, nil)
		synced, err := s.EnsureValid(context.Background())
		require.NoError(t, err)
		assert.True(t, synced)
		assert.Equal(t, 2024, clock.Now().Year())
	})

	t.Run("unreadable", func(t *testing.T) {
		r := &fakeRTC{readErr: errors.New("halted")}
		clock := NewClock(r, 0)
		s := NewSyncer(&fakeNTP{t: ntpTime}, "x", clock, nil)
		synced, err := s.EnsureValid(context.Background())
		require.NoError(t, err)
		assert.True(t, synced)
	})
}

func TestClockFallsBackToSystemTime(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := NewClock(nil, -2)
	clock.now = func() time.Time { return base }

	assert.Equal(t, 8, clock.Now().Hour())
	assert.Equal(t, "system", clock.Source())
	assert.False(t, clock.HasRTC())

	s := NewSyncer(&fakeNTP{t: base.Add(90 * time.Second)}, "x", clock, nil)
	synced, err := s.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.True(t, synced)
	now := clock.Now()
	assert.Equal(t, 1, now.Minute())
	assert.Equal(t, 30, now.Second())
}

func TestClockRTCUnreadableFallsBack(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r := &fakeRTC{readErr: errors.New("bus error")}
	clock := NewClock(r, 1)
	clock.now = func() time.Time { return base }
	assert.Equal(t, 11, clock.Now().Hour())
	assert.Equal(t, "system", clock.Source())

	clock.SetOffset(5)
	assert.Equal(t, 5, clock.Offset())
	assert.Equal(t, 15, clock.Now().Hour())
	assert.Equal(t, clock.Location(), r.loc)
}

func TestClockOffsetChangeRewritesRTC(t *testing.T) {
	r := &fakeRTC{}
	clock := NewClock(r, 0)
	instant := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.Set(instant))
	assert.Equal(t, 12, clock.Now().Hour())

	clock.SetOffset(2)
	now := clock.Now()
	assert.Equal(t, 14, now.Hour(), "wall time follows the new offset")
	assert.True(t, now.Equal(instant), "instant is unchanged")
	assert.Equal(t, "rtc", clock.Source())

	// 偏移不变不重写
	r.mu.Lock()
	r.wall = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r.mu.Unlock()
	clock.SetOffset(2)
	assert.Equal(t, 9, clock.Now().Hour())
}

func TestClockOffsetChangeUnreadableRTC(t *testing.T) {
	r := &fakeRTC{readErr: errors.New("halted")}
	clock := NewClock(r, 0)
	clock.SetOffset(3)
	assert.Equal(t, "UTC+3", r.loc.String())
	assert.True(t, r.wall.IsZero(), "nothing written when the chip cannot be read")
}
