package hotplug

import (
	"bytes"
	"strings"
)

// Uevent is one kernel object event from the uevent netlink socket.
// The wire format is "action@devpath" followed by NUL-separated
// KEY=VALUE pairs.
type Uevent struct {
	Action  string
	DevPath string
	Env     map[string]string
}

func parseUevent(data []byte) *Uevent {
	fields := bytes.Split(data, []byte{0})
	if len(fields) == 0 {
		return nil
	}

	header := string(fields[0])
	action, devpath, ok := strings.Cut(header, "@")
	if !ok {
		// Messages relayed by udevd start with "libudev" instead of
		// the kernel header; those are duplicates of kernel events.
		return nil
	}

	ev := &Uevent{
		Action:  action,
		DevPath: devpath,
		Env:     make(map[string]string, len(fields)-1),
	}
	for _, field := range fields[1:] {
		if len(field) == 0 {
			continue
		}
		key, value, ok := strings.Cut(string(field), "=")
		if !ok {
			continue
		}
		ev.Env[key] = value
	}
	return ev
}

// DisplayChange reports whether the event signals a connector state
// change on a DRM device.
func (e *Uevent) DisplayChange() bool {
	if e == nil || e.Action != "change" {
		return false
	}
	return e.Env["SUBSYSTEM"] == "drm" && e.Env["HOTPLUG"] == "1"
}
