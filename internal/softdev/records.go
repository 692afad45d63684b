package softdev

import (
	"fmt"
	"net"

	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/wext"
	"github.com/mdlayher/wext/internal/wireless"
)

// Scan result layout. SSIDs longer than bssSSIDLen are truncated.
const (
	bssLen     = wireless.IW_SCAN_RESULT_SIZE
	bssSSIDLen = bssLen - 10
)

// EncodeBSS encodes a BSS into a scan result token.
func EncodeBSS(bss BSS) []byte {
	b := make([]byte, bssLen)
	copy(b[0:6], bss.BSSID)
	nlenc.PutUint16(b[6:8], uint16(bss.Frequency))
	b[8] = byte(int8(bss.Signal))

	n := copy(b[10:], bss.SSID)
	b[9] = byte(n)

	return b
}

// ParseScan parses the tokens returned by SIOCGIWSCAN.
func ParseScan(b []byte) ([]BSS, error) {
	if len(b)%bssLen != 0 {
		return nil, fmt.Errorf("%w: %d bytes of scan results", wext.ErrInvalidLength, len(b))
	}

	var out []BSS
	for i := 0; i < len(b); i += bssLen {
		r := b[i : i+bssLen]

		n := int(r[9])
		if n > bssSSIDLen {
			return nil, fmt.Errorf("%w: SSID length %d", wext.ErrInvalidLength, n)
		}

		out = append(out, BSS{
			BSSID:     append(net.HardwareAddr(nil), r[0:6]...),
			Frequency: int(nlenc.Uint16(r[6:8])),
			Signal:    int(int8(r[8])),
			SSID:      string(r[10 : 10+n]),
		})
	}

	return out, nil
}

// Range describes the capabilities of a Radio, as returned by SIOCGIWRANGE.
type Range struct {
	// Throughput in bits per second.
	Throughput int

	// Wireless Extensions version of the driver.
	Version int

	// Supported channels.
	Channels []int
}

// EncodeRange encodes a Range.
func EncodeRange(r Range) []byte {
	b := make([]byte, 6+2*len(r.Channels))
	nlenc.PutUint32(b[0:4], uint32(r.Throughput))
	b[4] = byte(r.Version)
	b[5] = byte(len(r.Channels))
	for i, c := range r.Channels {
		nlenc.PutUint16(b[6+2*i:8+2*i], uint16(c))
	}

	return b
}

// ParseRange parses the result of SIOCGIWRANGE.
func ParseRange(b []byte) (Range, error) {
	if len(b) < 6 || len(b) != 6+2*int(b[5]) {
		return Range{}, fmt.Errorf("%w: %d bytes of range", wext.ErrInvalidLength, len(b))
	}

	r := Range{
		Throughput: int(nlenc.Uint32(b[0:4])),
		Version:    int(b[4]),
		Channels:   make([]int, b[5]),
	}
	for i := range r.Channels {
		r.Channels[i] = int(nlenc.Uint16(b[6+2*i : 8+2*i]))
	}

	return r, nil
}
