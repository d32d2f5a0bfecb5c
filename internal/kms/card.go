// Package kms provides direct access to the kernel mode-setting interface
// of a DRM device. It speaks the DRM ioctl protocol through x/sys/unix and
// does not depend on libdrm.
package kms

import (
	"fmt"
	"os"
	"unsafe"
)

// modeCardRes corresponds to struct drm_mode_card_res.
type modeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

// modeGetConnector corresponds to struct drm_mode_get_connector.
type modeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

// modeInfo corresponds to struct drm_mode_modeinfo.
type modeInfo struct {
	Clock                                         uint32
	Hdisplay, HsyncStart, HsyncEnd, Htotal, Hskew uint16
	Vdisplay, VsyncStart, VsyncEnd, Vtotal, Vscan uint16
	Vrefresh                                      uint32
	Flags                                         uint32
	Type                                          uint32
	Name                                          [32]byte
}

// Resources holds the scan-out resources of a card, in the order the
// kernel reported them.
type Resources struct {
	Crtcs      []uint32
	Connectors []uint32
}

// Mode describes one video mode of a connector.
type Mode struct {
	Name          string
	Clock         uint32
	Width, Height uint16
	Refresh       uint32
	Flags         uint32
	Type          uint32
}

// Connector describes the probed state of one connector.
type Connector struct {
	ID       uint32
	Type     uint32
	TypeID   uint32
	Status   Status
	WidthMM  uint32
	HeightMM uint32
	Modes    []Mode
}

// CardOps is the query surface the device manager consumes.
type CardOps interface {
	Path() string
	Resources() (*Resources, error)
	Connector(id uint32) (*Connector, error)
	Close() error
}

// Card is an open DRM device node.
type Card struct {
	f    *os.File
	path string
}

// Open opens the DRM device at path.
func Open(path string) (*Card, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Card{f: f, path: path}, nil
}

// Path returns the device node path the card was opened from.
func (c *Card) Path() string {
	return c.path
}

// Close closes the device node.
func (c *Card) Close() error {
	return c.f.Close()
}

// Resources queries DRM_IOCTL_MODE_GETRESOURCES. The first call retrieves
// the counts, the second fills the ID arrays. The loop restarts when the
// counts grew in between (connector appeared mid-query).
func (c *Card) Resources() (*Resources, error) {
	for {
		var res modeCardRes
		if err := ioctl(c.f, ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
			return nil, fmt.Errorf("MODE_GETRESOURCES (count): %w", err)
		}

		crtcs := make([]uint32, res.CountCrtcs)
		connectors := make([]uint32, res.CountConnectors)
		fbs := make([]uint32, res.CountFbs)
		encoders := make([]uint32, res.CountEncoders)

		fill := modeCardRes{
			CountCrtcs:      res.CountCrtcs,
			CountConnectors: res.CountConnectors,
			CountFbs:        res.CountFbs,
			CountEncoders:   res.CountEncoders,
		}
		if len(crtcs) > 0 {
			fill.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
		}
		if len(connectors) > 0 {
			fill.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
		}
		if len(fbs) > 0 {
			fill.FbIDPtr = uint64(uintptr(unsafe.Pointer(&fbs[0])))
		}
		if len(encoders) > 0 {
			fill.EncoderIDPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
		}

		if err := ioctl(c.f, ioctlModeGetResources, unsafe.Pointer(&fill)); err != nil {
			return nil, fmt.Errorf("MODE_GETRESOURCES (fill): %w", err)
		}

		if fill.CountCrtcs > res.CountCrtcs || fill.CountConnectors > res.CountConnectors {
			continue
		}

		return &Resources{
			Crtcs:      crtcs[:fill.CountCrtcs],
			Connectors: connectors[:fill.CountConnectors],
		}, nil
	}
}

// Connector queries DRM_IOCTL_MODE_GETCONNECTOR for one connector,
// forcing a fresh probe of its connection state and mode list.
func (c *Card) Connector(id uint32) (*Connector, error) {
	for {
		count := modeGetConnector{ConnectorID: id}
		if err := ioctl(c.f, ioctlModeGetConnector, unsafe.Pointer(&count)); err != nil {
			return nil, fmt.Errorf("MODE_GETCONNECTOR(%d) (count): %w", id, err)
		}

		modes := make([]modeInfo, count.CountModes)
		fill := modeGetConnector{
			ConnectorID: id,
			CountModes:  count.CountModes,
		}
		if len(modes) > 0 {
			fill.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
		}

		if err := ioctl(c.f, ioctlModeGetConnector, unsafe.Pointer(&fill)); err != nil {
			return nil, fmt.Errorf("MODE_GETCONNECTOR(%d) (fill): %w", id, err)
		}

		if fill.CountModes > count.CountModes {
			continue
		}

		conn := &Connector{
			ID:       fill.ConnectorID,
			Type:     fill.ConnectorType,
			TypeID:   fill.ConnectorTypeID,
			Status:   Status(fill.Connection),
			WidthMM:  fill.MmWidth,
			HeightMM: fill.MmHeight,
			Modes:    make([]Mode, 0, fill.CountModes),
		}
		for _, m := range modes[:fill.CountModes] {
			conn.Modes = append(conn.Modes, Mode{
				Name:    cString(m.Name[:]),
				Clock:   m.Clock,
				Width:   m.Hdisplay,
				Height:  m.Vdisplay,
				Refresh: m.Vrefresh,
				Flags:   m.Flags,
				Type:    m.Type,
			})
		}
		return conn, nil
	}
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
