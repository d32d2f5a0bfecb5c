// Package hotplug watches for display connector attach/detach events and
// nudges the device manager to refresh its outputs.
package hotplug

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/BlissRoms-x86/drmfb-composer/internal/logger"
)

const (
	defaultSysfsDir     = "/sys/class/drm"
	defaultPollInterval = 2 * time.Second

	// kernel uevent multicast group
	ueventGroup = 1
)

// Options configures a Monitor.
type Options struct {
	// Netlink selects the kernel uevent socket as the event source.
	// When it is false, or the socket cannot be opened, the monitor
	// falls back to polling connector state under SysfsDir.
	Netlink      bool
	PollInterval time.Duration
	SysfsDir     string
}

// Monitor delivers change notifications to the device manager. The
// watcher goroutine starts on the first Enable and keeps running until
// Stop; Disable merely gates delivery so in-flight events are dropped
// instead of racing a teardown.
type Monitor struct {
	onChange func()
	opts     Options

	mu      sync.Mutex
	enabled bool
	started bool
	conn    *netlink.Conn
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a monitor that calls onChange on every detected display
// change event.
func New(opts Options, onChange func()) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.SysfsDir == "" {
		opts.SysfsDir = defaultSysfsDir
	}
	return &Monitor{onChange: onChange, opts: opts}
}

// Enable starts event delivery, spawning the watcher on first use.
func (m *Monitor) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = true
	if m.started {
		return
	}
	m.started = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Disable stops event delivery without stopping the watcher.
func (m *Monitor) Disable() {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
}

// Stop terminates the watcher goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.enabled = false
	cancel := m.cancel
	conn := m.conn
	done := m.done
	m.conn = nil
	m.mu.Unlock()

	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done
}

// deliver forwards one event to the manager unless delivery is gated.
func (m *Monitor) deliver() {
	m.mu.Lock()
	enabled := m.enabled
	m.mu.Unlock()
	if enabled {
		m.onChange()
	}
}

func (m *Monitor) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	if m.opts.Netlink {
		conn, err := netlink.Dial(unix.NETLINK_KOBJECT_UEVENT, &netlink.Config{
			Groups: ueventGroup,
		})
		if err == nil {
			if !m.publishConn(conn) {
				conn.Close()
				return
			}
			logger.Debug("Hotplug monitor listening on uevent socket")
			m.listen(ctx, conn)
			return
		}
		logger.Warnf("Failed to open uevent socket, falling back to polling: %v", err)
	}

	logger.Debugf("Hotplug monitor polling %s every %v", m.opts.SysfsDir, m.opts.PollInterval)
	m.poll(ctx)
}

// publishConn hands the freshly dialed socket to Stop. Receive has no
// context-driven exit, so Stop unblocks listen by closing the socket; a
// socket dialed after Stop already snapshotted m.conn would never be
// closed and the watcher would hang. Stop clears started under the same
// lock before it snapshots, so exactly one side ends up owning the
// socket: refuse the handoff here and let run close it instead.
func (m *Monitor) publishConn(conn *netlink.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return false
	}
	m.conn = conn
	return true
}

func (m *Monitor) listen(ctx context.Context, conn *netlink.Conn) {
	for {
		msgs, err := conn.Receive()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Warnf("uevent receive failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			if parseUevent(msg.Data).DisplayChange() {
				logger.Debug("Display change uevent received")
				m.deliver()
			}
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	last := m.connectorStates()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := m.connectorStates()
			if !statesEqual(last, current) {
				logger.Debug("Connector state change detected by polling")
				m.deliver()
			}
			last = current
		}
	}
}

// connectorStates snapshots the status of every connector the card
// exposes under sysfs (card0-eDP-1/status and friends).
func (m *Monitor) connectorStates() map[string]string {
	states := make(map[string]string)

	entries, err := os.ReadDir(m.opts.SysfsDir)
	if err != nil {
		logger.Warnf("Failed to read %s: %v", m.opts.SysfsDir, err)
		return states
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "card") || !strings.Contains(name, "-") {
			continue
		}
		status, err := os.ReadFile(filepath.Join(m.opts.SysfsDir, name, "status"))
		if err != nil {
			continue
		}
		states[name] = strings.TrimSpace(string(status))
	}
	return states
}

func statesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
