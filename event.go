package wext

import (
	"fmt"
	"math"

	"github.com/josharian/native"
	"github.com/mdlayher/wext/internal/wireless"
)

// eventHeaderLen is the size of the length and command fields which prefix
// every encoded event.
const eventHeaderLen = 4

// An Event is an unsolicited notification from a driver. It uses the same
// parameter shapes as requests.
type Event struct {
	Cmd    Command
	Params Params

	// Token data for events with Point parameters. The Point's Length is
	// computed from Extra when encoding.
	Extra []byte
}

// eventTable holds the metadata of events which are not standard commands.
var eventTable = map[Command]Descriptor{
	EventTxDrop:     {HeaderType: HeaderTypeAddr},
	EventCustom:     point(1, 0, wireless.IW_CUSTOM_MAX, 0),
	EventRegistered: {HeaderType: HeaderTypeAddr},
	EventExpired:    {HeaderType: HeaderTypeAddr},
}

// DescribeEvent returns the Descriptor of an event. Events mirroring a SET
// command share that command's Descriptor.
func DescribeEvent(c Command) (Descriptor, bool) {
	if d, ok := eventTable[c]; ok {
		return d, true
	}

	return Describe(c)
}

// EncodeEvent encodes an Event into a length-prefixed record in host byte
// order: the total length, the command, the payload of the parameter shape
// and the optional token data.
func EncodeEvent(e Event) ([]byte, error) {
	p := e.Params
	if p == nil {
		p = Empty{}
	}

	if pt, ok := p.(Point); ok {
		size := 1
		if d, ok := DescribeEvent(e.Cmd); ok && d.HeaderType == HeaderTypePoint && d.TokenSize > 0 {
			size = int(d.TokenSize)
		}

		if len(e.Extra)%size != 0 {
			return nil, fmt.Errorf("%w: %d bytes of event data for %s are not a multiple of %d",
				ErrInvalidLength, len(e.Extra), e.Cmd, size)
		}

		n := len(e.Extra) / size
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d tokens", ErrEventTooLarge, n)
		}

		pt.Length = uint16(n)
		p = pt
	} else if len(e.Extra) > 0 {
		return nil, fmt.Errorf("wext: event %s with %s parameters cannot carry token data",
			e.Cmd, p.HeaderType())
	}

	plen := p.eventLen()
	total := eventHeaderLen + plen + len(e.Extra)
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrEventTooLarge, total)
	}

	b := make([]byte, total)
	native.Endian.PutUint16(b[0:2], uint16(total))
	native.Endian.PutUint16(b[2:4], uint16(e.Cmd))

	var u Union
	p.marshal(&u)

	switch p.(type) {
	case Point:
		// The pointer slot never leaves the device.
		copy(b[eventHeaderLen:], u[8:8+plen])
	default:
		copy(b[eventHeaderLen:], u[:plen])
	}

	copy(b[eventHeaderLen+plen:], e.Extra)
	return b, nil
}
