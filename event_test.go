package wext

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/josharian/native"
)

func TestEncodeEvent(t *testing.T) {
	mac := net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0xde, 0xad}

	tests := []struct {
		name string
		e    Event
		want []byte
	}{
		{
			name: "no parameters",
			e:    Event{Cmd: CmdCommit},
			want: header(4, CmdCommit),
		},
		{
			name: "uint",
			e:    Event{Cmd: CmdSetMode, Params: Uint(ModeMaster)},
			want: append(header(8, CmdSetMode), native.Endian.AppendUint32(nil, 3)...),
		},
		{
			name: "frequency",
			e:    Event{Cmd: CmdSetFreq, Params: FreqMHz(2412)},
			want: func() []byte {
				b := header(12, CmdSetFreq)
				b = native.Endian.AppendUint32(b, 2412)
				b = native.Endian.AppendUint16(b, 6)
				return append(b, 0, 0)
			}(),
		},
		{
			name: "address",
			e:    Event{Cmd: CmdGetAP, Params: NewHardwareAddr(mac)},
			want: func() []byte {
				b := header(20, CmdGetAP)
				b = native.Endian.AppendUint16(b, 1)
				b = append(b, mac...)
				return append(b, make([]byte, 8)...)
			}(),
		},
		{
			name: "point",
			e: Event{
				Cmd:    CmdSetESSID,
				Params: Point{Length: 100, Flags: 1},
				Extra:  []byte("home"),
			},
			want: func() []byte {
				b := header(12, CmdSetESSID)
				b = native.Endian.AppendUint16(b, 4)
				b = native.Endian.AppendUint16(b, 1)
				return append(b, "home"...)
			}(),
		},
		{
			name: "custom",
			e: Event{
				Cmd:    EventCustom,
				Params: Point{},
				Extra:  []byte("hello"),
			},
			want: func() []byte {
				b := header(13, EventCustom)
				b = native.Endian.AppendUint16(b, 5)
				b = native.Endian.AppendUint16(b, 0)
				return append(b, "hello"...)
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeEvent(tt.e)
			if err != nil {
				t.Fatalf("failed to encode event: %v", err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected event (-want +got):\n%s", diff)
			}

			e, err := parseEvent(got)
			if err != nil {
				t.Fatalf("failed to parse event: %v", err)
			}

			// Decoding yields the original parameters, with the length of a
			// point taken from its data.
			want := tt.e
			switch p := want.Params.(type) {
			case nil:
				want.Params = Empty{}
			case Point:
				p.Length = uint16(len(want.Extra))
				want.Params = p
			}

			if diff := cmp.Diff(want, e); diff != "" {
				t.Fatalf("unexpected decoded event (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeEventErrors(t *testing.T) {
	tests := []struct {
		name string
		e    Event
		is   error
	}{
		{
			name: "partial token",
			e: Event{
				Cmd:    CmdSetThrSpy,
				Params: Point{},
				Extra:  make([]byte, 30),
			},
			is: ErrInvalidLength,
		},
		{
			name: "too large",
			e: Event{
				Cmd:    EventCustom,
				Params: Point{},
				Extra:  []byte(strings.Repeat("x", 65535)),
			},
			is: ErrEventTooLarge,
		},
		{
			name: "data without point",
			e: Event{
				Cmd:    CmdSetMode,
				Params: Uint(1),
				Extra:  []byte{1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeEvent(tt.e)
			if err == nil {
				t.Fatal("expected an error, but none occurred")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("unexpected error:\n- want: %v\n-  got: %v", tt.is, err)
			}
		})
	}
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		cmd  Command
		want Descriptor
		ok   bool
	}{
		{cmd: EventCustom, want: point(1, 0, 256, 0), ok: true},
		{cmd: EventExpired, want: Descriptor{HeaderType: HeaderTypeAddr}, ok: true},
		{cmd: CmdSetMode, want: Descriptor{HeaderType: HeaderTypeUint, Flags: FlagEvent}, ok: true},
		{cmd: 0x8cff},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			got, ok := DescribeEvent(tt.cmd)
			if ok != tt.ok {
				t.Fatalf("unexpected ok:\n- want: %v\n-  got: %v", tt.ok, ok)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected descriptor (-want +got):\n%s", diff)
			}
		})
	}
}

func header(n uint16, c Command) []byte {
	b := native.Endian.AppendUint16(nil, n)
	return native.Endian.AppendUint16(b, uint16(c))
}

// parseEvent decodes an encoded event, using the event's descriptor to
// locate its parameters and token data.
func parseEvent(b []byte) (Event, error) {
	if len(b) < eventHeaderLen {
		return Event{}, ErrInvalidLength
	}

	if n := int(native.Endian.Uint16(b[0:2])); n != len(b) {
		return Event{}, ErrInvalidLength
	}

	cmd := Command(native.Endian.Uint16(b[2:4]))
	desc, ok := DescribeEvent(cmd)
	if !ok {
		return Event{}, fmt.Errorf("unknown event %s", cmd)
	}

	body := b[eventHeaderLen:]

	var u Union
	if desc.HeaderType != HeaderTypePoint {
		if len(body) > UnionLen {
			return Event{}, ErrInvalidLength
		}
		copy(u[:], body)

		p, err := DecodeParams(desc.HeaderType, u)
		if err != nil {
			return Event{}, err
		}

		return Event{Cmd: cmd, Params: p}, nil
	}

	// Only the length and flags of a point are carried.
	if len(body) < 4 {
		return Event{}, ErrInvalidLength
	}
	copy(u[8:12], body[:4])

	p, err := DecodeParams(HeaderTypePoint, u)
	if err != nil {
		return Event{}, err
	}

	extra := body[4:]
	if len(extra) != int(p.(Point).Length)*int(desc.TokenSize) {
		return Event{}, ErrInvalidLength
	}

	return Event{Cmd: cmd, Params: p, Extra: extra}, nil
}
