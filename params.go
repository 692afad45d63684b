package wext

import (
	"fmt"
	"net"

	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/wext/internal/wireless"
)

// UnionLen is the size of the fixed parameter union in bytes.
const UnionLen = 16

// NameLen is the size of a Name, equal to IFNAMSIZ.
const NameLen = 16

// A Union is the raw, fixed-size parameter union of a request in host byte
// order. Which shape it holds is decided by a command's Descriptor, never by
// its contents.
type Union [UnionLen]byte

// Params is the decoded form of a Union. The concrete type is one of Empty,
// Name, Uint, Freq, Point, Param or Addr.
type Params interface {
	// HeaderType reports the union shape the Params were decoded from.
	HeaderType() HeaderType

	marshal(u *Union)
	eventLen() int
}

var (
	_ Params = Empty{}
	_ Params = Name{}
	_ Params = Uint(0)
	_ Params = Freq{}
	_ Params = Point{}
	_ Params = Param{}
	_ Params = Addr{}
)

// Empty is the payload of a command which carries no data.
type Empty struct{}

// HeaderType implements Params.
func (Empty) HeaderType() HeaderType { return HeaderTypeNull }

func (Empty) marshal(u *Union) { *u = Union{} }
func (Empty) eventLen() int     { return 0 }

// A Name is a short string of at most NameLen bytes, such as a protocol name.
// Private commands with small fixed arguments also carry them inline as a
// Name.
type Name [NameLen]byte

// NewName creates a Name from s, truncating s if necessary.
func NewName(s string) Name {
	var n Name
	copy(n[:], s)
	return n
}

// HeaderType implements Params.
func (Name) HeaderType() HeaderType { return HeaderTypeChar }

// String returns the Name up to its first NUL byte.
func (n Name) String() string { return nlenc.String(n[:]) }

func (n Name) marshal(u *Union) { *u = Union(n) }
func (Name) eventLen() int      { return NameLen }

// A Uint is an unsigned 32-bit value, such as an operating mode.
type Uint uint32

// HeaderType implements Params.
func (Uint) HeaderType() HeaderType { return HeaderTypeUint }

func (v Uint) marshal(u *Union) {
	*u = Union{}
	nlenc.PutUint32(u[0:4], uint32(v))
}

func (Uint) eventLen() int { return 4 }

// A Freq is a frequency or channel, expressed as M * 10^E.
type Freq struct {
	// Mantissa and exponent. A value below 1000 with a zero exponent is a
	// channel number rather than a frequency.
	M int32
	E int16

	// List index, when used in a range.
	I uint8

	Flags uint8
}

// FreqMHz creates a Freq for a frequency in MHz.
func FreqMHz(mhz int) Freq {
	return Freq{M: int32(mhz), E: 6}
}

// HeaderType implements Params.
func (Freq) HeaderType() HeaderType { return HeaderTypeFreq }

// MHz returns the frequency in MHz. Channel numbers are converted using the
// 2.4GHz band for channels up to 14 and the 5GHz band otherwise. Zero is
// returned when the Freq does not map to a known frequency.
func (f Freq) MHz() int {
	if f.E == 0 && f.M >= 0 && f.M < 1000 {
		band := Band2GHz
		if f.M > 14 {
			band = Band5GHz
		}

		return ChannelToFrequency(int(f.M), band)
	}

	hz := float64(f.M)
	for i := int16(0); i < f.E; i++ {
		hz *= 10
	}
	for i := f.E; i < 0; i++ {
		hz /= 10
	}

	return int(hz / 1e6)
}

func (f Freq) marshal(u *Union) {
	*u = Union{}
	nlenc.PutInt32(u[0:4], f.M)
	nlenc.PutUint16(u[4:6], uint16(f.E))
	u[6] = f.I
	u[7] = f.Flags
}

func (Freq) eventLen() int { return 8 }

// A Point describes a variable-length payload carried outside of the union.
// The payload itself is passed to handlers as Args.Extra.
type Point struct {
	// The number of tokens in the payload.
	Length uint16

	Flags uint16
}

// HeaderType implements Params.
func (Point) HeaderType() HeaderType { return HeaderTypePoint }

// marshal leaves the pointer slot of the union untouched, since it belongs to
// the caller's address space.
func (p Point) marshal(u *Union) {
	nlenc.PutUint16(u[8:10], p.Length)
	nlenc.PutUint16(u[10:12], p.Flags)
	for i := 12; i < UnionLen; i++ {
		u[i] = 0
	}
}

// Events carry only the length and flags of a Point.
func (Point) eventLen() int { return 4 }

// A Param is a signed value with flags, such as a bit rate or a threshold.
type Param struct {
	Value    int32
	Fixed    bool
	Disabled bool
	Flags    uint16
}

// HeaderType implements Params.
func (Param) HeaderType() HeaderType { return HeaderTypeParam }

func (p Param) marshal(u *Union) {
	*u = Union{}
	nlenc.PutInt32(u[0:4], p.Value)
	u[4] = boolByte(p.Fixed)
	u[5] = boolByte(p.Disabled)
	nlenc.PutUint16(u[6:8], p.Flags)
}

func (Param) eventLen() int { return 8 }

// An Addr is a socket address, normally a hardware address.
type Addr struct {
	Family uint16
	Data   [14]byte
}

// NewHardwareAddr creates an Addr holding an Ethernet hardware address.
func NewHardwareAddr(mac net.HardwareAddr) Addr {
	a := Addr{Family: wireless.ARPHRD_ETHER}
	copy(a.Data[:], mac)
	return a
}

// HeaderType implements Params.
func (Addr) HeaderType() HeaderType { return HeaderTypeAddr }

// HardwareAddr returns the Ethernet hardware address held by an Addr.
func (a Addr) HardwareAddr() net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	copy(mac, a.Data[:6])
	return mac
}

func (a Addr) marshal(u *Union) {
	*u = Union{}
	nlenc.PutUint16(u[0:2], a.Family)
	copy(u[2:], a.Data[:])
}

func (Addr) eventLen() int { return 16 }

// EncodeParams encodes p into a Union.
func EncodeParams(p Params) Union {
	var u Union
	p.marshal(&u)
	return u
}

// DecodeParams decodes the shape t from a Union.
func DecodeParams(t HeaderType, u Union) (Params, error) {
	switch t {
	case HeaderTypeNull:
		return Empty{}, nil
	case HeaderTypeChar:
		return Name(u), nil
	case HeaderTypeUint:
		return Uint(nlenc.Uint32(u[0:4])), nil
	case HeaderTypeFreq:
		return Freq{
			M:     nlenc.Int32(u[0:4]),
			E:     int16(nlenc.Uint16(u[4:6])),
			I:     u[6],
			Flags: u[7],
		}, nil
	case HeaderTypePoint:
		return Point{
			Length: nlenc.Uint16(u[8:10]),
			Flags:  nlenc.Uint16(u[10:12]),
		}, nil
	case HeaderTypeParam:
		return Param{
			Value:    nlenc.Int32(u[0:4]),
			Fixed:    u[4] != 0,
			Disabled: u[5] != 0,
			Flags:    nlenc.Uint16(u[6:8]),
		}, nil
	case HeaderTypeAddr:
		a := Addr{Family: nlenc.Uint16(u[0:2])}
		copy(a.Data[:], u[2:])
		return a, nil
	default:
		return nil, fmt.Errorf("wext: cannot decode header type %s", t)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}
