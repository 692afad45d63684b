package wext

import (
	"fmt"

	"github.com/mdlayher/wext/internal/wireless"
)

// A Mode is an operating mode, carried as a Uint by SIOCSIWMODE and
// SIOCGIWMODE.
type Mode uint32

// Possible Mode values.
const (
	ModeAuto      Mode = wireless.IW_MODE_AUTO
	ModeAdHoc     Mode = wireless.IW_MODE_ADHOC
	ModeManaged   Mode = wireless.IW_MODE_INFRA
	ModeMaster    Mode = wireless.IW_MODE_MASTER
	ModeRepeater  Mode = wireless.IW_MODE_REPEAT
	ModeSecondary Mode = wireless.IW_MODE_SECOND
	ModeMonitor   Mode = wireless.IW_MODE_MONITOR
)

var modeNames = [...]string{
	ModeAuto:      "auto",
	ModeAdHoc:     "ad-hoc",
	ModeManaged:   "managed",
	ModeMaster:    "master",
	ModeRepeater:  "repeater",
	ModeSecondary: "secondary",
	ModeMonitor:   "monitor",
}

// String returns the string representation of a Mode.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}

	return fmt.Sprintf("unknown(%d)", uint32(m))
}

// ParseMode parses the name of a Mode, as returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}

	return 0, fmt.Errorf("wext: unknown mode %q", s)
}
