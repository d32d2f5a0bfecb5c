package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BlissRoms-x86/drmfb-composer/internal/device"
)

type stubOutput struct {
	id        uint32
	connected bool
	internal  bool
}

func (o *stubOutput) ID() uint32      { return o.id }
func (o *stubOutput) Name() string    { return fmt.Sprintf("stub-%d", o.id) }
func (o *stubOutput) Connected() bool { return o.connected }
func (o *stubOutput) Internal() bool  { return o.internal }
func (o *stubOutput) Update() error   { return nil }
func (o *stubOutput) Report()         {}
func (o *stubOutput) Enable() error   { return nil }
func (o *stubOutput) Disable()        {}

type stubManager struct {
	outputs         []device.Output
	primary         uint32
	updates         int
	reportExternals int
}

func (m *stubManager) Outputs() []device.Output { return m.outputs }
func (m *stubManager) Primary() uint32          { return m.primary }
func (m *stubManager) Update()                  { m.updates++ }
func (m *stubManager) ReportExternal()          { m.reportExternals++ }

func (m *stubManager) ConnectedOutput(id uint32) device.Output {
	for _, out := range m.outputs {
		if out.ID() == id && out.Connected() {
			return out
		}
	}
	return nil
}

func TestCollectOutputs(t *testing.T) {
	mgr := &stubManager{
		outputs: []device.Output{
			&stubOutput{id: 40, connected: true, internal: true},
			&stubOutput{id: 41, connected: true},
			&stubOutput{id: 42},
		},
		primary: 40,
	}

	infos := CollectOutputs(mgr)

	assert.Equal(t, []OutputInfo{
		{ID: 40, Name: "stub-40", Connected: true, Internal: true, Primary: true},
		{ID: 41, Name: "stub-41", Connected: true},
		{ID: 42, Name: "stub-42"},
	}, infos)
}

func TestCollectOutputsWithoutPrimary(t *testing.T) {
	mgr := &stubManager{
		outputs: []device.Output{&stubOutput{id: 40, connected: true}},
	}

	infos := CollectOutputs(mgr)
	assert.Len(t, infos, 1)
	assert.False(t, infos[0].Primary, "no output is primary while the marker is absent")
}

func TestGetOutput(t *testing.T) {
	mgr := &stubManager{
		outputs: []device.Output{
			&stubOutput{id: 40, connected: true, internal: true},
			&stubOutput{id: 41},
		},
		primary: 40,
	}
	s := &Service{mgr: mgr}

	info, dbusErr := s.getOutput(40)
	assert.Nil(t, dbusErr)
	assert.Equal(t, OutputInfo{ID: 40, Name: "stub-40", Connected: true, Internal: true, Primary: true}, info)

	_, dbusErr = s.getOutput(41)
	assert.NotNil(t, dbusErr, "disconnected connectors are an error")

	_, dbusErr = s.getOutput(99)
	assert.NotNil(t, dbusErr, "unknown connectors are an error")
}

func TestServiceMethodsDriveManager(t *testing.T) {
	mgr := &stubManager{primary: 7}
	s := &Service{mgr: mgr}

	primary, dbusErr := s.getPrimary()
	assert.Nil(t, dbusErr)
	assert.Equal(t, uint32(7), primary)

	assert.Nil(t, s.refresh())
	assert.Equal(t, 1, mgr.updates)

	assert.Nil(t, s.acknowledgePrimary())
	assert.Equal(t, 1, mgr.reportExternals)
}
