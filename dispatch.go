package wext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/wext/internal/wireless"
)

const logPrefix = "wext:dispatch"

// Options configure a Dispatcher. The zero value is valid.
type Options struct {
	// Describe overrides the metadata lookup of standard commands. Nil uses
	// the package's Describe.
	Describe func(Command) (Descriptor, bool)

	// Transport receives events generated by SET commands with FlagEvent
	// and by SendEvent. Nil discards events.
	Transport Transport

	// Logger receives diagnostics. Nil uses slog.Default.
	Logger *slog.Logger
}

// A Dispatcher routes requests to the handlers of registered devices. Every
// request is validated and marshaled against command metadata before a
// handler is invoked, so handlers never see malformed input or caller
// buffers.
//
// A Dispatcher is safe for concurrent use. It holds no lock across handler
// invocations; drivers which need exclusion supply Device.Locker.
type Dispatcher struct {
	describe  func(Command) (Descriptor, bool)
	transport Transport
	log       *slog.Logger

	mu      sync.RWMutex
	devices map[string]*Device
}

// NewDispatcher creates a Dispatcher. Pass nil for opts to use defaults.
func NewDispatcher(opts *Options) *Dispatcher {
	if opts == nil {
		opts = &Options{}
	}

	d := &Dispatcher{
		describe:  Describe,
		transport: opts.Transport,
		log:       opts.Logger,
		devices:   make(map[string]*Device),
	}
	if opts.Describe != nil {
		d.describe = opts.Describe
	}
	if d.log == nil {
		d.log = slog.Default()
	}

	return d
}

// A Device is a device instance registered with a Dispatcher.
type Device struct {
	// The name which identifies the device in requests.
	Name string

	// The interface index of the device, used by event transports.
	Index int

	// The handlers of the device's driver type.
	Handlers *HandlerDef

	// If set, Locker is held while a handler or the commit handler runs and
	// released on every exit path.
	Locker sync.Locker

	// Driver holds the driver's per-device state.
	Driver any
}

// Register associates a device with its handlers. A device must be
// registered before requests can be dispatched to it.
func (d *Dispatcher) Register(dev *Device) error {
	if dev == nil || dev.Name == "" {
		return errors.New("wext: device must have a name")
	}
	if dev.Handlers == nil {
		return fmt.Errorf("wext: device %s has no handlers", dev.Name)
	}
	if err := dev.Handlers.validate(); err != nil {
		return fmt.Errorf("wext: cannot register %s: %w", dev.Name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[dev.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, dev.Name)
	}
	d.devices[dev.Name] = dev

	d.log.Debug(fmt.Sprintf("%s - registered %s with %d standard and %d private handlers",
		logPrefix, dev.Name, dev.Handlers.NumStandard(), dev.Handlers.NumPrivate()))
	return nil
}

// Unregister removes a device.
func (d *Dispatcher) Unregister(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNoDevice, name)
	}
	delete(d.devices, name)

	return nil
}

// Devices returns all registered devices ordered by name.
func (d *Dispatcher) Devices() []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	devs := make([]*Device, 0, len(d.devices))
	for _, dev := range d.devices {
		devs = append(devs, dev)
	}

	sort.Slice(devs, func(i, j int) bool { return devs[i].Name < devs[j].Name })
	return devs
}

func (d *Dispatcher) device(name string) (*Device, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dev, ok := d.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, name)
	}

	return dev, nil
}

// Descriptor returns the Descriptor a device uses for a command, resolving
// private commands through the device's private arguments.
func (d *Dispatcher) Descriptor(name string, cmd Command) (Descriptor, error) {
	dev, err := d.device(name)
	if err != nil {
		return Descriptor{}, err
	}

	return d.descriptor(dev, cmd)
}

func (d *Dispatcher) descriptor(dev *Device, cmd Command) (Descriptor, error) {
	switch {
	case cmd.Standard():
		desc, ok := d.describe(cmd)
		if !ok {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		return desc, nil
	case cmd.Private():
		return dev.Handlers.privateDescriptor(cmd), nil
	default:
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
	}
}

// A Request is a request as issued by a caller: the fixed parameter union
// and, for POINT commands, the caller's buffer. The length of Buffer is the
// caller's declared capacity. Results of GET commands are written back into
// the Request.
type Request struct {
	Union  Union
	Buffer []byte
}

// NewRequest creates a Request carrying p and the caller buffer buf.
func NewRequest(p Params, buf []byte) *Request {
	return &Request{
		Union:  EncodeParams(p),
		Buffer: buf,
	}
}

// Decode decodes the parameters of a Request using desc, returning the
// tokens in Buffer for POINT commands.
func (r *Request) Decode(desc Descriptor) (Params, []byte, error) {
	p, err := DecodeParams(desc.HeaderType, r.Union)
	if err != nil {
		return nil, nil, err
	}

	pt, ok := p.(Point)
	if !ok {
		return p, nil, nil
	}

	n := int(pt.Length) * int(desc.TokenSize)
	if n > len(r.Buffer) {
		return nil, nil, fmt.Errorf("%w: %d bytes described, buffer holds %d",
			ErrInvalidLength, n, len(r.Buffer))
	}

	return p, r.Buffer[:n], nil
}

// A Call is one sub-operation of a batch.
type Call struct {
	Cmd     Command
	Request *Request
}

// A Result is the outcome of one GET command performed by Dump.
type Result struct {
	Cmd    Command
	Params Params
	Extra  []byte
	Err    error
}

// Dispatch validates a request for the named device, invokes the handler of
// cmd and marshals results back into req. If the handler requests a commit,
// the device's commit handler runs before Dispatch returns.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, cmd Command, req *Request, caller Caller) error {
	return d.DispatchBatch(ctx, name, []Call{{Cmd: cmd, Request: req}}, caller)
}

// DispatchBatch performs several calls as one external request. Calls run in
// order and stop at the first failure. The commit handler runs at most once,
// after the last call, if any handler requested it; changes accepted before a
// failure are committed as well.
func (d *Dispatcher) DispatchBatch(ctx context.Context, name string, calls []Call, caller Caller) error {
	dev, err := d.device(name)
	if err != nil {
		return err
	}

	b := newBatch(dev)

	var cerr error
	for _, c := range calls {
		if cerr = d.call(ctx, dev, b, c.Cmd, c.Request, caller); cerr != nil {
			break
		}
	}

	if err := b.finish(ctx); err != nil {
		d.log.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
		return errors.Join(cerr, err)
	}

	return cerr
}

// Dump performs every GET command the device supports which is not excluded
// by FlagDump. Restricted commands are skipped for unprivileged callers.
func (d *Dispatcher) Dump(ctx context.Context, name string, caller Caller) ([]Result, error) {
	dev, err := d.device(name)
	if err != nil {
		return nil, err
	}

	b := newBatch(dev)

	var results []Result
	for cmd := FirstStandard + 1; cmd <= LastStandard; cmd += 2 {
		desc, ok := d.describe(cmd)
		if !ok || desc.Flags&FlagDump != 0 {
			continue
		}
		if desc.Flags&FlagRestrict != 0 && !caller.Privileged {
			continue
		}
		if _, err := d.handler(dev, cmd); err != nil {
			continue
		}

		req := &Request{}
		if desc.HeaderType == HeaderTypePoint {
			req = NewRequest(
				Point{Length: desc.MaxTokens},
				make([]byte, int(desc.MaxTokens)*int(desc.TokenSize)),
			)
		}

		r := Result{Cmd: cmd}
		if r.Err = d.call(ctx, dev, b, cmd, req, caller); r.Err == nil {
			r.Params, r.Extra, r.Err = req.Decode(desc)
		}

		results = append(results, r)
	}

	return results, b.finish(ctx)
}

// call performs a single request within a batch.
func (d *Dispatcher) call(ctx context.Context, dev *Device, b *batch, cmd Command, req *Request, caller Caller) error {
	if req == nil {
		req = &Request{}
	}

	desc, err := d.descriptor(dev, cmd)
	if err != nil {
		return d.reject(dev, cmd, err)
	}

	tokens, err := validate(cmd, desc, req, caller)
	if err != nil {
		return d.reject(dev, cmd, err)
	}

	args, err := marshalArgs(cmd, desc, req, tokens)
	if err != nil {
		return d.reject(dev, cmd, err)
	}

	h, err := d.handler(dev, cmd)
	if err != nil {
		return d.reject(dev, cmd, err)
	}

	status, err := invoke(ctx, dev, h, RequestInfo{Cmd: cmd, Flags: RequestFlagNone}, args)
	if err != nil {
		d.log.Debug(fmt.Sprintf("%s - %s handler for %s failed: %v", logPrefix, dev.Name, cmd, err))
		return err
	}

	if status == StatusCommit {
		b.requestCommit()
	}

	if cmd.IsGet() {
		if err := unmarshalArgs(cmd, desc, args, req); err != nil {
			return d.reject(dev, cmd, err)
		}

		return nil
	}

	if desc.Flags&FlagEvent != 0 {
		e := Event{Cmd: cmd, Params: args.Params, Extra: args.Extra}
		if desc.Flags&FlagRestrict != 0 {
			// Restricted payloads such as keys never leave the device.
			e.Extra = nil
		}
		if err := d.publish(ctx, dev, e); err != nil {
			d.log.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
		}
	}

	return nil
}

func (d *Dispatcher) reject(dev *Device, cmd Command, err error) error {
	d.log.Debug(fmt.Sprintf("%s - rejected %s for %s: %v", logPrefix, cmd, dev.Name, err))
	return err
}

// handler resolves the handler of cmd. Listing private arguments and
// committing are served by the dispatcher when the driver does not implement
// them itself.
func (d *Dispatcher) handler(dev *Device, cmd Command) (Handler, error) {
	var (
		h   Handler
		err error
	)

	switch {
	case cmd.Standard():
		h, err = dev.Handlers.resolveStandard(cmd)
	case cmd.Private():
		h, err = dev.Handlers.resolvePrivate(cmd)
	default:
		err = ErrUnsupportedCommand
	}
	if err == nil {
		return h, nil
	}

	switch {
	case cmd == CmdGetPriv && len(dev.Handlers.PrivateArgs) > 0:
		return getPrivArgs, nil
	case cmd == CmdCommit && dev.Handlers.Commit != nil:
		return commitRequested, nil
	}

	return nil, fmt.Errorf("%w: %s on %s", err, cmd, dev.Name)
}

// validate checks a request against its descriptor and returns the number of
// tokens carried by POINT requests. Nothing is copied from the caller before
// validate succeeds.
func validate(cmd Command, desc Descriptor, req *Request, caller Caller) (int, error) {
	if cmd.IsGet() && desc.Flags&FlagRestrict != 0 && !caller.Privileged {
		return 0, fmt.Errorf("%w: %s requires privilege", ErrPermissionDenied, cmd)
	}

	if desc.HeaderType != HeaderTypePoint {
		return 0, nil
	}

	n := int(nlenc.Uint16(req.Union[8:10]))
	if n < int(desc.MinTokens) || n > int(desc.MaxTokens) {
		return 0, fmt.Errorf("%w: %s: %d tokens outside of [%d, %d]",
			ErrInvalidLength, cmd, n, desc.MinTokens, desc.MaxTokens)
	}

	if size := n * int(desc.TokenSize); size > len(req.Buffer) {
		return 0, fmt.Errorf("%w: %s: %d bytes required, caller buffer holds %d",
			ErrInvalidLength, cmd, size, len(req.Buffer))
	}

	return n, nil
}

// marshalArgs copies a validated request into handler arguments. POINT
// payloads are copied into a buffer of exactly the validated size, however
// large the caller's buffer is.
func marshalArgs(cmd Command, desc Descriptor, req *Request, tokens int) (*Args, error) {
	p, err := DecodeParams(desc.HeaderType, req.Union)
	if err != nil {
		return nil, err
	}

	args := &Args{Params: p}
	if desc.HeaderType == HeaderTypePoint {
		args.Extra = make([]byte, tokens*int(desc.TokenSize))
		if cmd.IsSet() {
			copy(args.Extra, req.Buffer)
		}
	}

	return args, nil
}

// unmarshalArgs copies the results of a GET handler back into the caller's
// request. The request is untouched when the results do not fit.
func unmarshalArgs(cmd Command, desc Descriptor, args *Args, req *Request) error {
	if args.Params == nil || args.Params.HeaderType() != desc.HeaderType {
		return fmt.Errorf("%w: %s: got %T for %s header", errHandlerParams, cmd, args.Params, desc.HeaderType)
	}

	pt, ok := args.Params.(Point)
	if !ok {
		args.Params.marshal(&req.Union)
		return nil
	}

	size := int(desc.TokenSize)
	if size == 0 || len(args.Extra)%size != 0 {
		return fmt.Errorf("%w: %s: %d bytes are not a multiple of token size %d",
			errHandlerParams, cmd, len(args.Extra), size)
	}

	n := len(args.Extra) / size
	if n > int(desc.MaxTokens) || len(args.Extra) > len(req.Buffer) {
		return fmt.Errorf("%w: %s: %d tokens (%d bytes), caller buffer holds %d bytes",
			ErrResultTooLarge, cmd, n, len(args.Extra), len(req.Buffer))
	}

	pt.Length = uint16(n)
	copy(req.Buffer, args.Extra)
	pt.marshal(&req.Union)

	return nil
}

// invoke runs a handler while holding the device's lock, if any.
func invoke(ctx context.Context, dev *Device, h Handler, info RequestInfo, args *Args) (Status, error) {
	if dev.Locker != nil {
		dev.Locker.Lock()
		defer dev.Locker.Unlock()
	}

	return h(ctx, dev, info, args)
}

// commitRequested serves CmdCommit for drivers which only supply
// HandlerDef.Commit.
func commitRequested(context.Context, *Device, RequestInfo, *Args) (Status, error) {
	return StatusCommit, nil
}

// getPrivArgs serves CmdGetPriv by exporting the device's private argument
// descriptions.
func getPrivArgs(_ context.Context, dev *Device, _ RequestInfo, args *Args) (Status, error) {
	pa := dev.Handlers.PrivateArgs

	b := make([]byte, len(pa)*wireless.IW_PRIV_ARGS_SIZE)
	for i, a := range pa {
		a.marshal(b[i*wireless.IW_PRIV_ARGS_SIZE : (i+1)*wireless.IW_PRIV_ARGS_SIZE])
	}

	args.Extra = b
	return StatusDone, nil
}

// marshal encodes a PrivArgs into a 24 byte iw_priv_args structure.
func (a PrivArgs) marshal(b []byte) {
	nlenc.PutUint32(b[0:4], uint32(a.Cmd))
	nlenc.PutUint16(b[4:6], uint16(a.SetArgs))
	nlenc.PutUint16(b[6:8], uint16(a.GetArgs))
	copy(b[8:wireless.IW_PRIV_ARGS_SIZE], a.Name)
}

// ParsePrivArgs parses the result of a CmdGetPriv request.
func ParsePrivArgs(b []byte) ([]PrivArgs, error) {
	if len(b)%wireless.IW_PRIV_ARGS_SIZE != 0 {
		return nil, fmt.Errorf("%w: %d bytes of private arguments", ErrInvalidLength, len(b))
	}

	out := make([]PrivArgs, 0, len(b)/wireless.IW_PRIV_ARGS_SIZE)
	for i := 0; i < len(b); i += wireless.IW_PRIV_ARGS_SIZE {
		out = append(out, PrivArgs{
			Cmd:     Command(nlenc.Uint32(b[i : i+4])),
			SetArgs: PrivType(nlenc.Uint16(b[i+4 : i+6])),
			GetArgs: PrivType(nlenc.Uint16(b[i+6 : i+8])),
			Name:    nlenc.String(b[i+8 : i+wireless.IW_PRIV_ARGS_SIZE]),
		})
	}

	return out, nil
}
