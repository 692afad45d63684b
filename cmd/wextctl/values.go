package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/wext"
	"github.com/mdlayher/wext/internal/softdev"
	"github.com/mdlayher/wext/internal/wireless"
)

// parseCommand parses a standard command name, case insensitively.
func parseCommand(s string) (wext.Command, error) {
	c, ok := wext.ParseCommand(strings.ToUpper(s))
	if !ok || !c.Standard() {
		return 0, fmt.Errorf("unknown command %q", s)
	}

	return c, nil
}

// setRequest builds the request of a SET command from its textual value.
func setRequest(cmd wext.Command, desc wext.Descriptor, s string) (*wext.Request, error) {
	switch desc.HeaderType {
	case wext.HeaderTypeNull:
		return &wext.Request{}, nil
	case wext.HeaderTypeChar:
		if desc.TokenSize > 1 {
			return intsRequest(desc, s)
		}
		return wext.NewRequest(wext.NewName(s), nil), nil
	case wext.HeaderTypeUint:
		if cmd == wext.CmdSetMode {
			m, err := wext.ParseMode(s)
			if err != nil {
				return nil, err
			}
			return wext.NewRequest(wext.Uint(m), nil), nil
		}

		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return nil, err
		}
		return wext.NewRequest(wext.Uint(v), nil), nil
	case wext.HeaderTypeFreq:
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}

		// Small values are channels.
		f := wext.FreqMHz(v)
		if v < 1000 {
			f = wext.Freq{M: int32(v)}
		}
		return wext.NewRequest(f, nil), nil
	case wext.HeaderTypeParam:
		if s == "off" {
			return wext.NewRequest(wext.Param{Disabled: true}, nil), nil
		}

		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return nil, err
		}
		return wext.NewRequest(wext.Param{Value: int32(v), Fixed: true}, nil), nil
	case wext.HeaderTypeAddr:
		mac, err := net.ParseMAC(s)
		if err != nil {
			return nil, err
		}
		return wext.NewRequest(wext.NewHardwareAddr(mac), nil), nil
	case wext.HeaderTypePoint:
		return pointRequest(cmd, desc, s)
	default:
		return nil, fmt.Errorf("cannot set %s parameters", desc.HeaderType)
	}
}

func pointRequest(cmd wext.Command, desc wext.Descriptor, s string) (*wext.Request, error) {
	var (
		p    wext.Point
		data []byte
	)

	switch cmd {
	case wext.CmdSetEncode:
		if s == "off" {
			p.Flags = wireless.IW_ENCODE_DISABLED
			break
		}

		b, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
		if err != nil {
			return nil, fmt.Errorf("keys must be hexadecimal: %w", err)
		}
		data = b
	case wext.CmdSetESSID:
		data = []byte(s)
		if s != "" && s != "any" {
			p.Flags = 1
		} else {
			data = nil
		}
	default:
		data = []byte(s)
	}

	size := int(desc.TokenSize)
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a multiple of token size %d", len(data), size)
	}

	p.Length = uint16(len(data) / size)
	return wext.NewRequest(p, data), nil
}

// intsRequest builds a request carrying integers inline in the union.
func intsRequest(desc wext.Descriptor, s string) (*wext.Request, error) {
	fields := strings.Fields(s)
	if len(fields) != int(desc.MinTokens) {
		return nil, fmt.Errorf("expected %d values, got %d", desc.MinTokens, len(fields))
	}

	var n wext.Name
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 0, 32)
		if err != nil {
			return nil, err
		}
		nlenc.PutUint32(n[4*i:4*i+4], uint32(v))
	}

	return wext.NewRequest(n, nil), nil
}

// getRequest builds the request of a GET command with room for the largest
// possible result.
func getRequest(desc wext.Descriptor) *wext.Request {
	if desc.HeaderType != wext.HeaderTypePoint {
		return &wext.Request{}
	}

	return wext.NewRequest(
		wext.Point{Length: desc.MaxTokens},
		make([]byte, int(desc.MaxTokens)*int(desc.TokenSize)),
	)
}

// formatValue formats the result of a GET command.
func formatValue(cmd wext.Command, desc wext.Descriptor, p wext.Params, extra []byte) string {
	switch p := p.(type) {
	case wext.Empty:
		return ""
	case wext.Name:
		if desc.TokenSize == 4 {
			return formatInts(p[:int(desc.MaxTokens)*4])
		}
		return p.String()
	case wext.Uint:
		if cmd == wext.CmdGetMode {
			return wext.Mode(p).String()
		}
		return strconv.FormatUint(uint64(p), 10)
	case wext.Freq:
		mhz := p.MHz()
		return fmt.Sprintf("%d MHz (channel %d)", mhz, wext.FrequencyToChannel(mhz))
	case wext.Param:
		if p.Disabled {
			return "off"
		}
		if p.Fixed {
			return fmt.Sprintf("%d (fixed)", p.Value)
		}
		return strconv.Itoa(int(p.Value))
	case wext.Addr:
		return p.HardwareAddr().String()
	case wext.Point:
		return formatPoint(cmd, desc, p, extra)
	default:
		return fmt.Sprintf("%v", p)
	}
}

func formatPoint(cmd wext.Command, desc wext.Descriptor, p wext.Point, extra []byte) string {
	switch cmd {
	case wext.CmdGetESSID:
		if p.Flags == 0 {
			return "off/any"
		}
		return strconv.Quote(string(extra))
	case wext.CmdGetNick:
		return strconv.Quote(string(extra))
	case wext.CmdGetEncode:
		if p.Flags&wireless.IW_ENCODE_DISABLED != 0 {
			return "off"
		}
		return fmt.Sprintf("[%d] %s", p.Flags&wireless.IW_ENCODE_INDEX, hex.EncodeToString(extra))
	case wext.CmdGetRange:
		r, err := softdev.ParseRange(extra)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%d b/s, WE-%d, channels %v", r.Throughput, r.Version, r.Channels)
	}

	return fmt.Sprintf("%d tokens: %s", p.Length, hex.EncodeToString(extra))
}

func formatInts(b []byte) string {
	vals := make([]string, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		vals = append(vals, strconv.FormatUint(uint64(nlenc.Uint32(b[i:i+4])), 10))
	}

	return strings.Join(vals, " ")
}
