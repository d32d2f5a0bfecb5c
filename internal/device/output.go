package device

import (
	"fmt"
	"sync"

	"github.com/BlissRoms-x86/drmfb-composer/internal/kms"
	"github.com/BlissRoms-x86/drmfb-composer/internal/logger"
)

// drmOutput is one physical connector of the card. Its probed state is
// refreshed by Update; scan-out resources are brokered through the
// manager when the output is enabled for scan-out.
type drmOutput struct {
	mgr       *Manager
	connector uint32

	mu        sync.Mutex
	name      string
	internal  bool
	connected bool
	modes     []kms.Mode
	widthMM   uint32
	heightMM  uint32

	enabled bool
	pipe    int // reserved pipe index, -1 when none
	crtc    uint32
	mode    int // index into modes while enabled
}

func newDRMOutput(m *Manager, connector uint32) Output {
	return &drmOutput{
		mgr:       m,
		connector: connector,
		name:      fmt.Sprintf("connector-%d", connector),
		pipe:      -1,
	}
}

// ID returns the connector ID.
func (o *drmOutput) ID() uint32 {
	return o.connector
}

// Name returns the connector name, e.g. "eDP-1". Before the first probe
// it falls back to "connector-<id>".
func (o *drmOutput) Name() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.name
}

// Connected reports the connection state as of the last Update.
func (o *drmOutput) Connected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connected
}

// Internal reports whether the connector drives a built-in panel.
func (o *drmOutput) Internal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.internal
}

// Modes returns the mode list as of the last Update.
func (o *drmOutput) Modes() []kms.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	modes := make([]kms.Mode, len(o.modes))
	copy(modes, o.modes)
	return modes
}

// CRTC returns the reserved CRTC ID, 0 while the output is disabled.
func (o *drmOutput) CRTC() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.crtc
}

// Update re-probes the connector. A connection state change is logged
// and, while the manager is enabled, reported to the composition
// callback; a disconnect also releases the output's CRTC.
func (o *drmOutput) Update() error {
	conn, err := o.mgr.Card().Connector(o.connector)
	if err != nil {
		return fmt.Errorf("probe connector %d: %w", o.connector, err)
	}

	o.mu.Lock()
	o.name = kms.ConnectorName(conn.Type, conn.TypeID)
	o.internal = kms.TypeInternal(conn.Type)
	o.modes = conn.Modes
	o.widthMM = conn.WidthMM
	o.heightMM = conn.HeightMM
	wasConnected := o.connected
	o.connected = conn.Status.Connected()
	changed := wasConnected != o.connected
	name, connected := o.name, o.connected
	o.mu.Unlock()

	if !changed {
		return nil
	}

	logger.Infof("Output %s (connector %d) %s", name, o.connector, conn.Status)
	if !connected {
		o.Disable()
	}
	if o.mgr.Enabled() {
		o.Report()
	}
	return nil
}

// Report announces the output's current connection state to the
// composition callback. It does nothing while the manager is disabled.
func (o *drmOutput) Report() {
	if cb := o.mgr.Callback(); cb != nil {
		cb.OnHotplug(o.ID(), o.Connected())
	}
}

// Enable claims a CRTC for the output and selects its scan-out mode.
// Already-enabled outputs return nil.
func (o *drmOutput) Enable() error {
	o.mu.Lock()
	if o.enabled {
		o.mu.Unlock()
		return nil
	}
	if !o.connected {
		name := o.name
		o.mu.Unlock()
		return fmt.Errorf("output %s is not connected", name)
	}
	if len(o.modes) == 0 {
		name := o.name
		o.mu.Unlock()
		return fmt.Errorf("no valid mode for output %s", name)
	}
	o.mu.Unlock()

	pipe, crtc := -1, uint32(0)
	for p := 0; p < o.mgr.PipeCount(); p++ {
		if id := o.mgr.ReserveCRTC(p); id != 0 {
			pipe, crtc = p, id
			break
		}
	}
	if crtc == 0 {
		return fmt.Errorf("no free CRTC for output %s", o.Name())
	}

	o.mu.Lock()
	o.pipe = pipe
	o.crtc = crtc
	o.mode = preferredMode(o.modes)
	o.enabled = true
	mode := o.modes[o.mode]
	o.mu.Unlock()

	logger.Debugf("Output %s enabled on CRTC %d (pipe %d), mode %s",
		o.Name(), crtc, pipe, mode.Name)
	return nil
}

// Disable releases the output's CRTC. Calling it on a disabled output is
// a no-op.
func (o *drmOutput) Disable() {
	o.mu.Lock()
	pipe := o.pipe
	o.pipe = -1
	o.crtc = 0
	o.enabled = false
	o.mu.Unlock()

	if pipe >= 0 {
		o.mgr.FreeCRTC(pipe)
	}
}

// preferredMode picks the index of the mode the kernel flagged as
// preferred, falling back to the first mode.
func preferredMode(modes []kms.Mode) int {
	for i, m := range modes {
		if m.Type&kms.ModeTypePreferred != 0 {
			return i
		}
	}
	return 0
}
