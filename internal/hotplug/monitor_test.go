package hotplug

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ueventPayload(header string, env ...string) []byte {
	payload := []byte(header)
	for _, field := range env {
		payload = append(payload, 0)
		payload = append(payload, field...)
	}
	return payload
}

func TestParseUevent(t *testing.T) {
	data := ueventPayload("change@/devices/pci0000:00/0000:00:02.0/drm/card0",
		"ACTION=change", "DEVPATH=/devices/pci0000:00/0000:00:02.0/drm/card0",
		"SUBSYSTEM=drm", "HOTPLUG=1", "DEVNAME=dri/card0")

	ev := parseUevent(data)
	require.NotNil(t, ev)
	assert.Equal(t, "change", ev.Action)
	assert.Equal(t, "/devices/pci0000:00/0000:00:02.0/drm/card0", ev.DevPath)
	assert.Equal(t, "drm", ev.Env["SUBSYSTEM"])
	assert.Equal(t, "1", ev.Env["HOTPLUG"])
}

func TestParseUeventRejectsUdevMessages(t *testing.T) {
	// udevd's relayed messages carry a "libudev" magic header instead
	// of "action@devpath".
	assert.Nil(t, parseUevent(ueventPayload("libudev", "ACTION=change")))
}

func TestDisplayChange(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{
			name: "drm hotplug",
			data: ueventPayload("change@/devices/drm/card0", "SUBSYSTEM=drm", "HOTPLUG=1"),
			want: true,
		},
		{
			name: "drm change without hotplug flag",
			data: ueventPayload("change@/devices/drm/card0", "SUBSYSTEM=drm"),
			want: false,
		},
		{
			name: "other subsystem",
			data: ueventPayload("change@/devices/input/event3", "SUBSYSTEM=input", "HOTPLUG=1"),
			want: false,
		},
		{
			name: "add action",
			data: ueventPayload("add@/devices/drm/card0", "SUBSYSTEM=drm", "HOTPLUG=1"),
			want: false,
		},
		{
			name: "malformed",
			data: []byte("garbage"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseUevent(tt.data).DisplayChange())
		})
	}
}

func TestDeliverGating(t *testing.T) {
	calls := 0
	m := New(Options{}, func() { calls++ })

	m.deliver()
	assert.Zero(t, calls, "events before Enable are dropped")

	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
	m.deliver()
	assert.Equal(t, 1, calls)

	m.Disable()
	m.deliver()
	assert.Equal(t, 1, calls, "events after Disable are dropped")
}

func TestConnectorStates(t *testing.T) {
	dir := t.TempDir()
	for name, status := range map[string]string{
		"card0-eDP-1":    "connected\n",
		"card0-HDMI-A-1": "disconnected\n",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name, "status"), []byte(status), 0o644))
	}
	// Entries that are not connectors are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "card0"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "renderD128"), 0o755))

	m := New(Options{SysfsDir: dir}, func() {})
	states := m.connectorStates()

	assert.Equal(t, map[string]string{
		"card0-eDP-1":    "connected",
		"card0-HDMI-A-1": "disconnected",
	}, states)
}

func TestStatesEqual(t *testing.T) {
	a := map[string]string{"card0-eDP-1": "connected"}
	b := map[string]string{"card0-eDP-1": "connected"}
	c := map[string]string{"card0-eDP-1": "disconnected"}
	d := map[string]string{"card0-eDP-1": "connected", "card0-HDMI-A-1": "disconnected"}

	assert.True(t, statesEqual(a, b))
	assert.False(t, statesEqual(a, c))
	assert.False(t, statesEqual(a, d))
}

func TestStopWithoutEnable(t *testing.T) {
	m := New(Options{}, func() {})
	m.Stop() // must not block or panic
}

func TestSocketHandoffRefusedAfterStop(t *testing.T) {
	m := New(Options{Netlink: true}, func() {})

	// The watcher dials without holding the lock. When Stop wins that
	// race it has already snapshotted a nil conn, so the handoff must
	// be refused and the watcher left to close the socket itself;
	// accepting it would strand the goroutine in Receive with nobody
	// able to unblock it.
	assert.False(t, m.publishConn(nil))
	assert.Nil(t, m.conn)

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	assert.True(t, m.publishConn(nil), "a running watcher hands its socket to Stop")
}

func TestStopUnblocksUeventWatcher(t *testing.T) {
	m := New(Options{
		Netlink:      true,
		PollInterval: 10 * time.Millisecond,
		SysfsDir:     t.TempDir(),
	}, func() {})
	m.Enable()

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestEnableStartsPollingWatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "card0-eDP-1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card0-eDP-1", "status"), []byte("disconnected\n"), 0o644))

	changes := make(chan struct{}, 8)
	m := New(Options{
		Netlink:      false,
		PollInterval: 10 * time.Millisecond,
		SysfsDir:     dir,
	}, func() { changes <- struct{}{} })

	m.Enable()
	defer m.Stop()

	// Let the watcher take its initial snapshot, then flip the state.
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card0-eDP-1", "status"), []byte("connected\n"), 0o644))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification after connector state flip")
	}
}
