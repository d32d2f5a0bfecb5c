// Package device manages the display outputs of a DRM device: connector
// discovery, exclusive CRTC allocation, hotplug-driven refresh and the
// staged reporting of outputs to the composition consumer.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BlissRoms-x86/drmfb-composer/internal/kms"
	"github.com/BlissRoms-x86/drmfb-composer/internal/logger"
)

// Callback receives output availability changes while the manager is
// enabled. The reference is borrowed: the owner must call Disable before
// the callback's backing object goes away.
type Callback interface {
	OnHotplug(id uint32, connected bool)
}

// Output is one display output keyed by its connector ID.
type Output interface {
	ID() uint32
	Name() string
	Connected() bool
	Internal() bool
	Update() error
	Report()
	Enable() error
	Disable()
}

// Monitor is the background hotplug watcher bound to the manager.
type Monitor interface {
	Enable()
	Disable()
}

// Manager owns the device handle, the CRTC pool and the output registry.
// Initialize, Enable, Disable and the CRTC brokerage are called from the
// owning service; Update additionally runs on the hotplug monitor's
// goroutine, so all shared state is guarded by mu.
type Manager struct {
	mu        sync.Mutex
	card      kms.CardOps
	crtcs     []uint32
	usedCrtcs uint32
	outputs   map[uint32]Output
	order     []uint32
	primary   uint32
	callback  Callback
	monitor   Monitor

	newOutput func(m *Manager, connector uint32) Output
}

// NewManager creates a manager for an opened card. The card may be nil,
// in which case Initialize fails and the manager stays unusable.
func NewManager(card kms.CardOps) *Manager {
	return &Manager{
		card:      card,
		newOutput: newDRMOutput,
	}
}

// SetMonitor binds the hotplug monitor the manager enables and disables.
func (m *Manager) SetMonitor(mon Monitor) {
	m.mu.Lock()
	m.monitor = mon
	m.mu.Unlock()
}

// Card returns the underlying device handle.
func (m *Manager) Card() kms.CardOps {
	return m.card
}

// Initialize queries the card for its scan-out resources and builds one
// output per reported connector. Calling it again re-queries the card and
// replaces the CRTC pool, bitmask and registry wholesale.
func (m *Manager) Initialize() error {
	if m.card == nil {
		logger.Error("No usable DRM device")
		return errors.New("no usable DRM device")
	}

	res, err := m.card.Resources()
	if err != nil {
		logger.Errorf("Failed to get DRM mode resources: %v", err)
		return fmt.Errorf("get DRM mode resources: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.crtcs = append(m.crtcs[:0], res.Crtcs...)
	m.usedCrtcs = 0
	m.outputs = make(map[uint32]Output, len(res.Connectors))
	m.order = m.order[:0]
	for _, connector := range res.Connectors {
		if _, dup := m.outputs[connector]; dup {
			logger.Warnf("Connector %d listed twice in DRM resources", connector)
			continue
		}
		m.outputs[connector] = m.newOutput(m, connector)
		m.order = append(m.order, connector)
	}

	logger.Debugf("Initialized %s: %d CRTCs, %d connectors",
		m.card.Path(), len(m.crtcs), len(m.order))
	return nil
}

// maxPipes is the width of the reservation bitmask. The kernel caps
// CRTC counts far below this; pool entries past the mask are not
// reservable rather than silently shared.
const maxPipes = 32

// ReserveCRTC claims the CRTC at position pipe in the pool for exclusive
// use and returns its ID. It returns 0 when pipe is out of range or the
// CRTC is already taken; the pool is left untouched in that case.
func (m *Manager) ReserveCRTC(pipe int) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pipe < 0 || pipe >= len(m.crtcs) || pipe >= maxPipes {
		return 0
	}
	mask := uint32(1) << uint(pipe)
	if m.usedCrtcs&mask != 0 {
		return 0
	}
	m.usedCrtcs |= mask
	return m.crtcs[pipe]
}

// FreeCRTC releases the CRTC at position pipe. Freeing an unreserved or
// out-of-range pipe is a no-op.
func (m *Manager) FreeCRTC(pipe int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pipe >= 0 && pipe < len(m.crtcs) {
		m.usedCrtcs &^= uint32(1) << uint(pipe)
	}
}

// PipeCount returns the size of the CRTC pool.
func (m *Manager) PipeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.crtcs)
}

// CRTCs returns the CRTC pool in pipe order.
func (m *Manager) CRTCs() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, len(m.crtcs))
	copy(out, m.crtcs)
	return out
}

// Outputs returns the registered outputs in registry order.
func (m *Manager) Outputs() []Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderedLocked()
}

func (m *Manager) orderedLocked() []Output {
	outputs := make([]Output, 0, len(m.order))
	for _, connector := range m.order {
		outputs = append(outputs, m.outputs[connector])
	}
	return outputs
}

// ConnectedOutput returns the output for a connector ID if it is
// currently connected, nil otherwise.
func (m *Manager) ConnectedOutput(id uint32) Output {
	m.mu.Lock()
	out, ok := m.outputs[id]
	m.mu.Unlock()
	if !ok || !out.Connected() {
		return nil
	}
	return out
}

// Callback returns the registered composition callback, nil while the
// manager is disabled.
func (m *Manager) Callback() Callback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callback
}

// Enabled reports whether a composition callback is registered.
func (m *Manager) Enabled() bool {
	return m.Callback() != nil
}

// Primary returns the connector ID marked as primary, 0 when none.
func (m *Manager) Primary() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}

// Update refreshes the connection state of every registered output.
// Connectors the kernel reports but the registry does not know are
// diagnosed and left alone; attaching them at runtime is not supported.
func (m *Manager) Update() {
	if m.card == nil {
		return
	}

	if res, err := m.card.Resources(); err == nil {
		m.mu.Lock()
		for _, connector := range res.Connectors {
			if _, ok := m.outputs[connector]; !ok {
				logger.Warnf("Connector %d appeared after initialization; hotplugged connectors are not supported", connector)
			}
		}
		m.mu.Unlock()
	}

	for _, out := range m.Outputs() {
		if err := out.Update(); err != nil {
			logger.Warnf("Failed to update output %s: %v", out.Name(), err)
		}
	}
}

// Enable refreshes all outputs, registers the composition callback and
// announces the primary output: the first connected internal output, or
// failing that the first connected output of any kind. Only that single
// output is reported here; the rest follow through ReportExternal once
// the consumer has handled the initial announcement.
func (m *Manager) Enable(callback Callback) {
	m.Update()

	m.mu.Lock()
	m.callback = callback
	outputs := m.orderedLocked()
	monitor := m.monitor
	m.mu.Unlock()

	var primary Output
	for _, out := range outputs {
		if out.Connected() && out.Internal() {
			primary = out
			break
		}
	}
	if primary == nil {
		for _, out := range outputs {
			if out.Connected() {
				primary = out
				break
			}
		}
	}

	if primary != nil {
		logger.Infof("Reporting output %s (connector %d) as primary display",
			primary.Name(), primary.ID())
		primary.Report()
		m.mu.Lock()
		m.primary = primary.ID()
		m.mu.Unlock()
	} else {
		logger.Info("No connected output to report")
	}

	if monitor != nil {
		monitor.Enable()
	}
}

// ReportExternal reports every connected output skipped during Enable and
// clears the primary marker. It is a no-op when no primary is marked.
func (m *Manager) ReportExternal() {
	m.mu.Lock()
	primary := m.primary
	outputs := m.orderedLocked()
	m.mu.Unlock()

	if primary == 0 {
		return
	}

	for _, out := range outputs {
		if out.ID() != primary && out.Connected() {
			logger.Infof("Reporting output %s (connector %d)", out.Name(), out.ID())
			out.Report()
		}
	}

	m.mu.Lock()
	m.primary = 0
	m.mu.Unlock()
}

// Disable stops the hotplug monitor, drops the composition callback and
// disables every registered output. Safe to call repeatedly.
func (m *Manager) Disable() {
	m.mu.Lock()
	monitor := m.monitor
	m.mu.Unlock()
	if monitor != nil {
		monitor.Disable()
	}

	m.mu.Lock()
	m.callback = nil
	outputs := m.orderedLocked()
	m.mu.Unlock()

	for _, out := range outputs {
		out.Disable()
	}
}
