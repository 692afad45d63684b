// Package softdev implements a software radio driver on top of package wext.
// It keeps all state in memory and is used by wextctl and in tests.
package softdev

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/wext"
	"github.com/mdlayher/wext/internal/wireless"
	"golang.org/x/crypto/pbkdf2"
)

// ProtocolName is the value returned by SIOCGIWNAME.
const ProtocolName = "IEEE 802.11bgn"

// Private commands supported by a Radio.
var (
	CmdSetPSK     = wext.Private(0)
	CmdGetPMK     = wext.Private(1)
	CmdReset      = wext.Private(2)
	CmdGetCommits = wext.Private(3)
)

// A BSS is a network returned by scans.
type BSS struct {
	BSSID     net.HardwareAddr
	SSID      string
	Frequency int
	Signal    int
}

// Config configures a Radio.
type Config struct {
	Name         string
	Index        int
	HardwareAddr net.HardwareAddr

	// Initial settings.
	SSID    string
	Channel int
	Mode    uint32

	// Networks returned by scans.
	Networks []BSS
}

// A Radio is the state of one software radio device.
type Radio struct {
	mu  sync.Mutex
	cfg Config

	name    wext.Name
	freq    wext.Freq
	mode    uint32
	essid   []byte
	essidOn bool
	nick    []byte
	ap      wext.Addr
	params  map[wext.Command]wext.Param
	keys    [4][]byte
	txKey   int
	encOff  bool
	pmk     []byte
	scanned bool

	pending struct {
		freq *wext.Freq
		mode *uint32
	}

	commits   int
	commitErr error
}

// New creates a Radio from cfg.
func New(cfg Config) *Radio {
	r := &Radio{cfg: cfg}
	r.reset()
	return r
}

// reset restores the configured initial state. Pending changes are kept.
func (r *Radio) reset() {
	r.name = wext.NewName(ProtocolName)
	r.mode = r.cfg.Mode
	r.freq = wext.Freq{}
	if r.cfg.Channel != 0 {
		band := wext.Band2GHz
		if r.cfg.Channel > 14 {
			band = wext.Band5GHz
		}
		r.freq = wext.FreqMHz(wext.ChannelToFrequency(r.cfg.Channel, band))
	}

	r.essid = []byte(r.cfg.SSID)
	r.essidOn = r.cfg.SSID != ""
	r.nick = nil
	r.ap = wext.Addr{Family: wireless.ARPHRD_ETHER}
	r.params = map[wext.Command]wext.Param{
		wext.CmdGetRate:  {Value: 54000000},
		wext.CmdGetRTS:   {Value: 2347, Disabled: true, Fixed: true},
		wext.CmdGetFrag:  {Value: 2346, Disabled: true, Fixed: true},
		wext.CmdGetTxPow: {Value: 20, Fixed: true},
		wext.CmdGetRetry: {Value: 7},
	}
	r.keys = [4][]byte{}
	r.txKey = 0
	r.encOff = true
	r.pmk = nil
	r.scanned = false
}

// Device returns a wext.Device for the Radio, ready to be registered.
func (r *Radio) Device() *wext.Device {
	return &wext.Device{
		Name:     r.cfg.Name,
		Index:    r.cfg.Index,
		Handlers: Handlers,
		Locker:   &r.mu,
		Driver:   r,
	}
}

// FailCommits makes subsequent commits fail with err. A nil err makes them
// succeed again.
func (r *Radio) FailCommits(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitErr = err
}

// A State is a snapshot of a Radio's applied configuration.
type State struct {
	Frequency int
	Mode      uint32
	SSID      string
	Commits   int
	Pending   bool
}

// State returns a snapshot of the Radio's applied configuration.
func (r *Radio) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return State{
		Frequency: r.freq.MHz(),
		Mode:      r.mode,
		SSID:      string(r.essid),
		Commits:   r.commits,
		Pending:   r.pending.freq != nil || r.pending.mode != nil,
	}
}

// Associate records an association with bssid and reports it to listeners
// of d.
func (r *Radio) Associate(ctx context.Context, d *wext.Dispatcher, bssid net.HardwareAddr) error {
	ap := wext.NewHardwareAddr(bssid)

	r.mu.Lock()
	r.ap = ap
	r.mu.Unlock()

	return d.SendEvent(ctx, r.cfg.Name, wext.Event{Cmd: wext.CmdGetAP, Params: ap})
}

// Notify reports a free-form message to listeners of d.
func (r *Radio) Notify(ctx context.Context, d *wext.Dispatcher, msg string) error {
	return d.SendEvent(ctx, r.cfg.Name, wext.Event{
		Cmd:    wext.EventCustom,
		Params: wext.Point{},
		Extra:  []byte(msg),
	})
}

// Handlers are the handlers shared by all Radios.
var Handlers = &wext.HandlerDef{
	Version: "16",
	Standard: wext.Handlers(wext.FirstStandard, map[wext.Command]wext.Handler{
		wext.CmdGetName:   getName,
		wext.CmdSetFreq:   setFreq,
		wext.CmdGetFreq:   getFreq,
		wext.CmdSetMode:   setMode,
		wext.CmdGetMode:   getMode,
		wext.CmdGetRange:  getRange,
		wext.CmdSetAP:     setAP,
		wext.CmdGetAP:     getAP,
		wext.CmdSetScan:   setScan,
		wext.CmdGetScan:   getScan,
		wext.CmdSetESSID:  setString,
		wext.CmdGetESSID:  getString,
		wext.CmdSetNick:   setString,
		wext.CmdGetNick:   getString,
		wext.CmdSetRate:   setParam,
		wext.CmdGetRate:   getParam,
		wext.CmdSetRTS:    setParam,
		wext.CmdGetRTS:    getParam,
		wext.CmdSetFrag:   setParam,
		wext.CmdGetFrag:   getParam,
		wext.CmdSetTxPow:  setParam,
		wext.CmdGetTxPow:  getParam,
		wext.CmdSetRetry:  setParam,
		wext.CmdGetRetry:  getParam,
		wext.CmdSetEncode: setEncode,
		wext.CmdGetEncode: getEncode,
	}),
	Private: wext.Handlers(wext.FirstPrivate, map[wext.Command]wext.Handler{
		CmdSetPSK:     setPSK,
		CmdGetPMK:     getPMK,
		CmdReset:      reset,
		CmdGetCommits: getCommits,
	}),
	PrivateArgs: []wext.PrivArgs{
		{
			Cmd:     CmdSetPSK,
			SetArgs: wext.NewPrivType(wext.PrivTypeChar, 63, false),
			Name:    "set_psk",
		},
		{
			Cmd:     CmdGetPMK,
			GetArgs: wext.NewPrivType(wext.PrivTypeByte, 32, true),
			Name:    "get_pmk",
		},
		{
			Cmd:  CmdReset,
			Name: "reset",
		},
		{
			Cmd:     CmdGetCommits,
			GetArgs: wext.NewPrivType(wext.PrivTypeInt, 1, true),
			Name:    "get_commits",
		},
	},
	Commit: commit,
}

var errInvalid = fmt.Errorf("softdev: %w", syscall.EINVAL)

func radio(dev *wext.Device) *Radio { return dev.Driver.(*Radio) }

func commit(_ context.Context, dev *wext.Device) error {
	r := radio(dev)
	if r.commitErr != nil {
		return r.commitErr
	}

	if r.pending.freq != nil {
		r.freq = *r.pending.freq
	}
	if r.pending.mode != nil {
		r.mode = *r.pending.mode
	}

	r.pending.freq, r.pending.mode = nil, nil
	r.commits++
	return nil
}

func getName(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	args.Params = radio(dev).name
	return wext.StatusDone, nil
}

func setFreq(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	f := args.Params.(wext.Freq)
	if f.MHz() == 0 {
		return 0, fmt.Errorf("%w: unknown frequency %d*10^%d", errInvalid, f.M, f.E)
	}

	// Store frequencies in MHz, whether a channel or a frequency was given.
	f = wext.FreqMHz(f.MHz())
	radio(dev).pending.freq = &f
	return wext.StatusCommit, nil
}

func getFreq(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	args.Params = radio(dev).freq
	return wext.StatusDone, nil
}

func setMode(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	m := uint32(args.Params.(wext.Uint))
	if m > wireless.IW_MODE_MONITOR {
		return 0, fmt.Errorf("%w: unknown mode %d", errInvalid, m)
	}

	radio(dev).pending.mode = &m
	return wext.StatusCommit, nil
}

func getMode(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	args.Params = wext.Uint(radio(dev).mode)
	return wext.StatusDone, nil
}

func getRange(_ context.Context, _ *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	args.Extra = EncodeRange(Range{
		Throughput: 54000000,
		Version:    wext.WirelessExtVersion,
		Channels:   []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 36, 40, 44, 48},
	})
	return wext.StatusDone, nil
}

func setAP(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	radio(dev).ap = args.Params.(wext.Addr)
	return wext.StatusDone, nil
}

func getAP(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	args.Params = radio(dev).ap
	return wext.StatusDone, nil
}

func setScan(_ context.Context, dev *wext.Device, _ wext.RequestInfo, _ *wext.Args) (wext.Status, error) {
	radio(dev).scanned = true
	return wext.StatusDone, nil
}

func getScan(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	r := radio(dev)
	if !r.scanned {
		return 0, fmt.Errorf("softdev: no scan results: %w", syscall.EAGAIN)
	}

	var b []byte
	for _, bss := range r.cfg.Networks {
		b = append(b, EncodeBSS(bss)...)
	}

	args.Params = wext.Point{}
	args.Extra = b
	return wext.StatusDone, nil
}

// setString and getString serve the ESSID and the nickname.
func setString(_ context.Context, dev *wext.Device, info wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	r := radio(dev)

	// Tools may include a trailing NUL.
	s := []byte(nlenc.String(args.Extra))
	if len(s) > wireless.IW_ESSID_MAX_SIZE {
		return 0, fmt.Errorf("%w: %d byte string", errInvalid, len(s))
	}

	switch info.Cmd {
	case wext.CmdSetESSID:
		r.essid = s
		r.essidOn = args.Params.(wext.Point).Flags != 0
	case wext.CmdSetNick:
		r.nick = s
	}

	return wext.StatusDone, nil
}

func getString(_ context.Context, dev *wext.Device, info wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	r := radio(dev)

	var p wext.Point
	switch info.Cmd {
	case wext.CmdGetESSID:
		args.Extra = append([]byte(nil), r.essid...)
		if r.essidOn {
			p.Flags = 1
		}
	case wext.CmdGetNick:
		args.Extra = append([]byte(nil), r.nick...)
	}

	args.Params = p
	return wext.StatusDone, nil
}

// setParam and getParam serve every Param setting, keyed by the GET command.
func setParam(_ context.Context, dev *wext.Device, info wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	p := args.Params.(wext.Param)
	if p.Value < 0 {
		return 0, fmt.Errorf("%w: negative value %d for %s", errInvalid, p.Value, info.Cmd)
	}

	radio(dev).params[info.Cmd|1] = p
	return wext.StatusDone, nil
}

func getParam(_ context.Context, dev *wext.Device, info wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	args.Params = radio(dev).params[info.Cmd]
	return wext.StatusDone, nil
}

func setEncode(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	r := radio(dev)
	p := args.Params.(wext.Point)

	i, err := keyIndex(r, p.Flags)
	if err != nil {
		return 0, err
	}

	if p.Flags&wireless.IW_ENCODE_DISABLED != 0 {
		r.encOff = true
		return wext.StatusDone, nil
	}

	if len(args.Extra) > 0 {
		switch len(args.Extra) {
		case 5, 13, 16, 32:
		default:
			return 0, fmt.Errorf("%w: %d byte key", errInvalid, len(args.Extra))
		}
		r.keys[i] = append([]byte(nil), args.Extra...)
	}

	r.txKey = i
	r.encOff = false
	return wext.StatusDone, nil
}

func getEncode(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	r := radio(dev)

	i, err := keyIndex(r, args.Params.(wext.Point).Flags)
	if err != nil {
		return 0, err
	}

	p := wext.Point{Flags: uint16(i + 1)}
	if r.encOff {
		p.Flags |= wireless.IW_ENCODE_DISABLED
	}
	if r.keys[i] == nil {
		p.Flags |= wireless.IW_ENCODE_NOKEY
	}

	args.Params = p
	args.Extra = append([]byte(nil), r.keys[i]...)
	return wext.StatusDone, nil
}

// keyIndex returns the zero-based key index selected by encoding flags. Index
// 0 selects the transmit key.
func keyIndex(r *Radio, flags uint16) (int, error) {
	i := int(flags & wireless.IW_ENCODE_INDEX)
	switch {
	case i == 0:
		return r.txKey, nil
	case i <= len(r.keys):
		return i - 1, nil
	default:
		return 0, fmt.Errorf("%w: key index %d", errInvalid, i)
	}
}

func setPSK(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	r := radio(dev)

	psk := []byte(nlenc.String(args.Extra))
	if len(psk) < 8 {
		return 0, fmt.Errorf("%w: passphrase must be 8 to 63 characters", errInvalid)
	}
	if len(r.essid) == 0 {
		return 0, errors.New("softdev: cannot derive a PMK without an ESSID")
	}

	r.pmk = wpaPassphrase(r.essid, psk)
	return wext.StatusDone, nil
}

// wpaPassphrase computes a WPA passphrase given an SSID and preshared key.
func wpaPassphrase(ssid, psk []byte) []byte {
	return pbkdf2.Key(psk, ssid, 4096, 32, sha1.New)
}

func getPMK(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	r := radio(dev)
	if r.pmk == nil {
		return 0, fmt.Errorf("softdev: no PMK: %w", syscall.ENODATA)
	}

	args.Extra = append([]byte(nil), r.pmk...)
	return wext.StatusDone, nil
}

func reset(_ context.Context, dev *wext.Device, _ wext.RequestInfo, _ *wext.Args) (wext.Status, error) {
	r := radio(dev)
	r.reset()
	r.pending.freq, r.pending.mode = nil, nil
	return wext.StatusCommit, nil
}

func getCommits(_ context.Context, dev *wext.Device, _ wext.RequestInfo, args *wext.Args) (wext.Status, error) {
	var n wext.Name
	nlenc.PutUint32(n[0:4], uint32(radio(dev).commits))

	args.Params = n
	return wext.StatusDone, nil
}
