package wext

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/mdlayher/wext/internal/wireless"
)

// A Handler implements one or more commands for a driver. The same Handler
// may occupy several slots of a HandlerDef; info.Cmd identifies the command
// being served.
//
// Handlers receive validated parameters in args. GET handlers report their
// results by replacing args.Params with a value of the same shape and, for
// POINT commands, by setting args.Extra: its length, which must be a multiple
// of the token size, determines the number of tokens returned.
//
// A non-nil error is relayed to the caller unmodified.
type Handler func(ctx context.Context, dev *Device, info RequestInfo, args *Args) (Status, error)

// A CommitHandler applies configuration accumulated by handlers which
// returned StatusCommit.
type CommitHandler func(ctx context.Context, dev *Device) error

// Args are the marshaled parameters of a request.
type Args struct {
	Params Params

	// The variable-length payload of a POINT command. It is owned by the
	// dispatcher and must not be retained after the handler returns.
	Extra []byte
}

// A HandlerDef holds the handlers exported by a driver type. One HandlerDef
// is shared by all devices of that type and must not be modified once a
// device using it is registered.
type HandlerDef struct {
	// The Wireless Extensions version the driver was built against, such as
	// "16". Empty means WirelessExtVersion.
	Version string

	// Standard handlers, indexed by command - FirstStandard. Nil slots are
	// unsupported commands.
	Standard []Handler

	// Private handlers, indexed by command - FirstPrivate.
	Private []Handler

	// Arguments of the private handlers, in any order.
	PrivateArgs []PrivArgs

	// Commit applies pending configuration. When nil, the handler in the
	// CmdCommit slot is used, if any.
	Commit CommitHandler
}

// NumStandard returns the number of standard handler slots.
func (d *HandlerDef) NumStandard() int { return len(d.Standard) }

// NumPrivate returns the number of private handler slots.
func (d *HandlerDef) NumPrivate() int { return len(d.Private) }

// NumPrivateArgs returns the number of private argument descriptions.
func (d *HandlerDef) NumPrivateArgs() int { return len(d.PrivateArgs) }

// Handlers builds a slice of handlers indexed relative to first, which is
// suitable for HandlerDef.Standard (first = FirstStandard) or
// HandlerDef.Private (first = FirstPrivate).
func Handlers(first Command, hs map[Command]Handler) []Handler {
	var n int
	for c := range hs {
		if i := int(c) - int(first) + 1; i > n {
			n = i
		}
	}

	out := make([]Handler, n)
	for c, h := range hs {
		if c < first {
			continue
		}
		out[c-first] = h
	}

	return out
}

// resolveStandard returns the handler of a standard command.
func (d *HandlerDef) resolveStandard(c Command) (Handler, error) {
	if !c.Standard() {
		return nil, ErrUnsupportedCommand
	}

	return slot(d.Standard, int(c-FirstStandard))
}

// resolvePrivate returns the handler of a private command.
func (d *HandlerDef) resolvePrivate(c Command) (Handler, error) {
	if !c.Private() {
		return nil, ErrUnsupportedCommand
	}

	return slot(d.Private, int(c-FirstPrivate))
}

func slot(hs []Handler, i int) (Handler, error) {
	if i < 0 || i >= len(hs) || hs[i] == nil {
		return nil, ErrUnsupportedCommand
	}

	return hs[i], nil
}

// privArgs finds the argument description of a private command.
func (d *HandlerDef) privArgs(c Command) (PrivArgs, bool) {
	for _, a := range d.PrivateArgs {
		if a.Cmd == c {
			return a, true
		}
	}

	return PrivArgs{}, false
}

// privateDescriptor derives the Descriptor of a private command from its
// arguments. Commands without a description carry no payload.
func (d *HandlerDef) privateDescriptor(c Command) Descriptor {
	a, ok := d.privArgs(c)
	if !ok {
		return Descriptor{HeaderType: HeaderTypeNull}
	}

	return a.Descriptor()
}

// commitHandler returns the handler which applies pending configuration, or
// nil if the driver has none.
func (d *HandlerDef) commitHandler() CommitHandler {
	if d.Commit != nil {
		return d.Commit
	}

	h, err := d.resolveStandard(CmdCommit)
	if err != nil {
		return nil
	}

	return func(ctx context.Context, dev *Device) error {
		_, err := h(ctx, dev, RequestInfo{Cmd: CmdCommit}, &Args{Params: Empty{}})
		return err
	}
}

// supportedVersions are the Wireless Extensions versions whose handler API
// and standard commands match this package.
var supportedVersions = func() *semver.Constraints {
	c, err := semver.NewConstraint(">= 13, <= 16")
	if err != nil {
		panic(fmt.Sprintf("wext: invalid version constraint: %v", err))
	}

	return c
}()

// validate checks that a HandlerDef can be registered.
func (d *HandlerDef) validate() error {
	if d.Version != "" {
		v, err := semver.NewVersion(d.Version)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrIncompatibleVersion, d.Version, err)
		}
		if !supportedVersions.Check(v) {
			return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleVersion, v, supportedVersions)
		}
	}

	if n := int(LastStandard-FirstStandard) + 1; len(d.Standard) > n {
		return fmt.Errorf("wext: %d standard handlers exceed range of %d", len(d.Standard), n)
	}
	if n := int(LastPrivate-FirstPrivate) + 1; len(d.Private) > n {
		return fmt.Errorf("wext: %d private handlers exceed range of %d", len(d.Private), n)
	}
	if len(d.PrivateArgs) > wireless.IW_MAX_PRIV_DEF {
		return fmt.Errorf("wext: %d private argument descriptions exceed limit of %d",
			len(d.PrivateArgs), wireless.IW_MAX_PRIV_DEF)
	}

	seen := make(map[Command]bool, len(d.PrivateArgs))
	for _, a := range d.PrivateArgs {
		if !a.Cmd.Private() {
			return fmt.Errorf("wext: private argument %q uses non-private command %s", a.Name, a.Cmd)
		}
		if seen[a.Cmd] {
			return fmt.Errorf("wext: duplicate private argument description for %s", a.Cmd)
		}
		if len(a.Name) >= wireless.IW_PRIV_ARGS_NAME_SIZE {
			return fmt.Errorf("wext: private argument name %q is too long", a.Name)
		}
		seen[a.Cmd] = true
	}

	return nil
}

// PrivArgs describes the arguments of a private command, so that tools can
// discover and invoke it.
type PrivArgs struct {
	Cmd     Command
	SetArgs PrivType
	GetArgs PrivType
	Name    string
}

// Descriptor returns the Descriptor of the command described by a: GET
// commands return GetArgs and SET commands take SetArgs.
func (a PrivArgs) Descriptor() Descriptor {
	if a.Cmd.IsGet() {
		return a.GetArgs.descriptor()
	}

	return a.SetArgs.descriptor()
}

// A PrivType describes the type and number of private command arguments.
type PrivType uint16

// Possible PrivType values.
const (
	PrivTypeNone  PrivType = wireless.IW_PRIV_TYPE_NONE
	PrivTypeByte  PrivType = wireless.IW_PRIV_TYPE_BYTE
	PrivTypeChar  PrivType = wireless.IW_PRIV_TYPE_CHAR
	PrivTypeInt   PrivType = wireless.IW_PRIV_TYPE_INT
	PrivTypeFloat PrivType = wireless.IW_PRIV_TYPE_FLOAT
	PrivTypeAddr  PrivType = wireless.IW_PRIV_TYPE_ADDR

	// PrivSizeFixed indicates exactly Count arguments are required.
	PrivSizeFixed PrivType = wireless.IW_PRIV_SIZE_FIXED
)

// NewPrivType creates a PrivType for count arguments of type typ.
func NewPrivType(typ PrivType, count int, fixed bool) PrivType {
	t := typ&wireless.IW_PRIV_TYPE_MASK | PrivType(count)&wireless.IW_PRIV_SIZE_MASK
	if fixed {
		t |= PrivSizeFixed
	}

	return t
}

// Type returns the argument type.
func (t PrivType) Type() PrivType { return t & wireless.IW_PRIV_TYPE_MASK }

// Count returns the maximum number of arguments, or the exact number if the
// size is fixed.
func (t PrivType) Count() int { return int(t & wireless.IW_PRIV_SIZE_MASK) }

// Fixed reports whether exactly Count arguments are required.
func (t PrivType) Fixed() bool { return t&PrivSizeFixed != 0 }

// String returns the string representation of a PrivType.
func (t PrivType) String() string {
	var name string
	switch t.Type() {
	case PrivTypeNone:
		return "none"
	case PrivTypeByte:
		name = "byte"
	case PrivTypeChar:
		name = "char"
	case PrivTypeInt:
		name = "int"
	case PrivTypeFloat:
		name = "float"
	case PrivTypeAddr:
		name = "addr"
	default:
		name = fmt.Sprintf("unknown(0x%04x)", uint16(t.Type()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]", name, t.Count())
	if t.Fixed() {
		b.WriteString(" fixed")
	}

	return b.String()
}

// size returns the size of one argument in bytes.
func (t PrivType) size() int {
	switch t.Type() {
	case PrivTypeByte, PrivTypeChar:
		return 1
	case PrivTypeInt:
		return 4
	case PrivTypeFloat:
		return 8
	case PrivTypeAddr:
		return wireless.IW_SOCKADDR_SIZE
	default:
		return 0
	}
}

// descriptor derives a Descriptor. Fixed arguments which fit in the union are
// carried inline; everything else is a POINT payload.
func (t PrivType) descriptor() Descriptor {
	n, size := t.Count(), t.size()
	if n == 0 || size == 0 {
		return Descriptor{HeaderType: HeaderTypeNull}
	}

	if t.Fixed() && n*size <= UnionLen {
		return Descriptor{
			HeaderType: HeaderTypeChar,
			TokenSize:  uint16(size),
			MinTokens:  uint16(n),
			MaxTokens:  uint16(n),
		}
	}

	d := Descriptor{
		HeaderType: HeaderTypePoint,
		TokenSize:  uint16(size),
		MaxTokens:  uint16(n),
	}
	if t.Fixed() {
		d.MinTokens = uint16(n)
	}

	return d
}
