package wext

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDispatcherSetFreqCommitsOnce(t *testing.T) {
	var calls, commits int
	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdSetFreq: func(_ context.Context, _ *Device, info RequestInfo, args *Args) (Status, error) {
				calls++

				want := RequestInfo{Cmd: CmdSetFreq, Flags: RequestFlagNone}
				if diff := cmp.Diff(want, info); diff != "" {
					t.Errorf("unexpected request info (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff(Params(FreqMHz(2437)), args.Params); diff != "" {
					t.Errorf("unexpected params (-want +got):\n%s", diff)
				}

				return StatusCommit, nil
			},
		}),
		Commit: func(context.Context, *Device) error {
			if calls != 1 {
				t.Errorf("commit before handler returned")
			}
			commits++
			return nil
		},
	})

	if err := d.Dispatch(context.Background(), "wlan0", CmdSetFreq, NewRequest(FreqMHz(2437), nil), Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}

	if calls != 1 || commits != 1 {
		t.Fatalf("unexpected calls and commits: %d, %d", calls, commits)
	}
}

func TestDispatcherResultTooLarge(t *testing.T) {
	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdGetScan: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				// 40 results of 32 bytes.
				args.Extra = bytes.Repeat([]byte{0xaa}, 40*32)
				return StatusDone, nil
			},
		}),
	})

	buf := bytes.Repeat([]byte{0xff}, 512)
	req := NewRequest(Point{Length: 16}, buf)
	before := req.Union

	err := d.Dispatch(context.Background(), "wlan0", CmdGetScan, req, Caller{})
	if !errors.Is(err, ErrResultTooLarge) {
		t.Fatalf("expected result too large, but got: %v", err)
	}

	if diff := cmp.Diff(bytes.Repeat([]byte{0xff}, 512), buf); diff != "" {
		t.Fatalf("caller buffer was modified (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, req.Union); diff != "" {
		t.Fatalf("caller union was modified (-want +got):\n%s", diff)
	}
}

func TestDispatcherUnsupportedPrivate(t *testing.T) {
	var calls int
	h := func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
		calls++
		return StatusCommit, nil
	}

	var commits int
	d := testDispatcher(t, &HandlerDef{
		Private: []Handler{h, h},
		Commit: func(context.Context, *Device) error {
			commits++
			return nil
		},
	})

	req := &Request{Buffer: []byte{1, 2, 3}}
	err := d.Dispatch(context.Background(), "wlan0", Private(5), req, Caller{Privileged: true})
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("expected unsupported command, but got: %v", err)
	}

	if calls != 0 || commits != 0 {
		t.Fatalf("unexpected side effects: %d calls, %d commits", calls, commits)
	}
	if diff := cmp.Diff(&Request{Buffer: []byte{1, 2, 3}}, req); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}
}

func TestDispatcherRestrictedGet(t *testing.T) {
	var calls int
	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdGetEncode: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				calls++
				args.Extra = []byte("secret")
				return StatusDone, nil
			},
		}),
	})

	buf := make([]byte, 64)
	err := d.Dispatch(context.Background(), "wlan0", CmdGetEncode, NewRequest(Point{Length: 64}, buf), Caller{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, but got: %v", err)
	}
	if calls != 0 {
		t.Fatalf("handler invoked %d times", calls)
	}

	req := NewRequest(Point{Length: 64}, buf)
	if err := d.Dispatch(context.Background(), "wlan0", CmdGetEncode, req, Caller{Privileged: true}); err != nil {
		t.Fatalf("failed to dispatch privileged request: %v", err)
	}

	p, extra, err := req.Decode(Descriptor{HeaderType: HeaderTypePoint, TokenSize: 1})
	if err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}

	if diff := cmp.Diff(Params(Point{Length: 6}), p); diff != "" {
		t.Fatalf("unexpected params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte("secret"), extra); diff != "" {
		t.Fatalf("unexpected data (-want +got):\n%s", diff)
	}
}

func TestDispatcherPointBounds(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		req  *Request
	}{
		{
			name: "above maximum",
			cmd:  CmdGetScan,
			req:  NewRequest(Point{Length: 65}, make([]byte, 65*32)),
		},
		{
			name: "below minimum",
			cmd:  CmdSetThrSpy,
			req:  NewRequest(Point{Length: 0}, make([]byte, 28)),
		},
		{
			name: "buffer too small",
			cmd:  CmdSetESSID,
			req:  NewRequest(Point{Length: 8}, make([]byte, 4)),
		},
		{
			name: "no buffer",
			cmd:  CmdGetScan,
			req:  NewRequest(Point{Length: 1}, nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			h := func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
				calls++
				return StatusDone, nil
			}

			d := testDispatcher(t, &HandlerDef{
				Standard: Handlers(FirstStandard, map[Command]Handler{tt.cmd: h}),
			})

			err := d.Dispatch(context.Background(), "wlan0", tt.cmd, tt.req, Caller{})
			if !errors.Is(err, ErrInvalidLength) {
				t.Fatalf("expected invalid length, but got: %v", err)
			}
			if calls != 0 {
				t.Fatalf("handler invoked %d times", calls)
			}
		})
	}
}

func TestDispatcherSetPointExactSize(t *testing.T) {
	var got []byte
	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdSetESSID: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				got = append([]byte(nil), args.Extra...)
				return StatusDone, nil
			},
		}),
	})

	// The caller's buffer is much larger than the declared payload.
	buf := make([]byte, 64)
	copy(buf, "hello, world")

	if err := d.Dispatch(context.Background(), "wlan0", CmdSetESSID, NewRequest(Point{Length: 5, Flags: 1}, buf), Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}

	if diff := cmp.Diff([]byte("hello"), got); diff != "" {
		t.Fatalf("unexpected handler data (-want +got):\n%s", diff)
	}
}

func TestDispatcherGetPoint(t *testing.T) {
	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdGetESSID: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				if diff := cmp.Diff(make([]byte, 10), args.Extra); diff != "" {
					t.Errorf("unexpected handler buffer (-want +got):\n%s", diff)
				}

				args.Params = Point{Flags: 1}
				args.Extra = []byte("test")
				return StatusDone, nil
			},
		}),
	})

	buf := bytes.Repeat([]byte{0xff}, 10)
	req := NewRequest(Point{Length: 10}, buf)

	if err := d.Dispatch(context.Background(), "wlan0", CmdGetESSID, req, Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}

	want := append([]byte("test"), bytes.Repeat([]byte{0xff}, 6)...)
	if diff := cmp.Diff(want, buf); diff != "" {
		t.Fatalf("unexpected caller buffer (-want +got):\n%s", diff)
	}

	p, err := DecodeParams(HeaderTypePoint, req.Union)
	if err != nil {
		t.Fatalf("failed to decode params: %v", err)
	}
	if diff := cmp.Diff(Params(Point{Length: 4, Flags: 1}), p); diff != "" {
		t.Fatalf("unexpected params (-want +got):\n%s", diff)
	}
}

func TestDispatcherGetInline(t *testing.T) {
	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdGetFreq: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				args.Params = FreqMHz(5180)
				return StatusDone, nil
			},
			CmdGetMode: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				// Wrong shape for a UINT command.
				args.Params = Name{}
				return StatusDone, nil
			},
		}),
	})

	req := &Request{}
	if err := d.Dispatch(context.Background(), "wlan0", CmdGetFreq, req, Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}

	if diff := cmp.Diff(EncodeParams(FreqMHz(5180)), req.Union); diff != "" {
		t.Fatalf("unexpected union (-want +got):\n%s", diff)
	}

	err := d.Dispatch(context.Background(), "wlan0", CmdGetMode, &Request{}, Caller{})
	if !errors.Is(err, errHandlerParams) {
		t.Fatalf("expected handler params error, but got: %v", err)
	}
}

func TestDispatcherHandlerError(t *testing.T) {
	errBusy := errors.New("device busy")

	var commits int
	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdSetMode: func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
				return StatusCommit, errBusy
			},
		}),
		Commit: func(context.Context, *Device) error {
			commits++
			return nil
		},
	})

	err := d.Dispatch(context.Background(), "wlan0", CmdSetMode, NewRequest(Uint(ModeMaster), nil), Caller{})
	if err != errBusy {
		t.Fatalf("unexpected error:\n- want: %v\n-  got: %v", errBusy, err)
	}
	if commits != 0 {
		t.Fatalf("commit ran %d times after a failed handler", commits)
	}
}

func TestDispatcherBatch(t *testing.T) {
	var (
		calls   []Command
		commits int
	)

	commit := func(_ context.Context, _ *Device, info RequestInfo, _ *Args) (Status, error) {
		calls = append(calls, info.Cmd)
		return StatusCommit, nil
	}

	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdSetFreq: commit,
			CmdSetMode: commit,
		}),
		Commit: func(context.Context, *Device) error {
			commits++
			return nil
		},
	})

	t.Run("OK", func(t *testing.T) {
		calls, commits = nil, 0

		err := d.DispatchBatch(context.Background(), "wlan0", []Call{
			{Cmd: CmdSetFreq, Request: NewRequest(FreqMHz(2412), nil)},
			{Cmd: CmdSetMode, Request: NewRequest(Uint(ModeAdHoc), nil)},
		}, Caller{})
		if err != nil {
			t.Fatalf("failed to dispatch batch: %v", err)
		}

		if diff := cmp.Diff([]Command{CmdSetFreq, CmdSetMode}, calls); diff != "" {
			t.Fatalf("unexpected calls (-want +got):\n%s", diff)
		}
		if commits != 1 {
			t.Fatalf("unexpected number of commits: %d", commits)
		}
	})

	t.Run("stops at failure", func(t *testing.T) {
		calls, commits = nil, 0

		err := d.DispatchBatch(context.Background(), "wlan0", []Call{
			{Cmd: CmdSetFreq, Request: NewRequest(FreqMHz(2412), nil)},
			{Cmd: CmdSetRate, Request: NewRequest(Param{Value: 1}, nil)},
			{Cmd: CmdSetMode, Request: NewRequest(Uint(ModeAdHoc), nil)},
		}, Caller{})
		if !errors.Is(err, ErrUnsupportedCommand) {
			t.Fatalf("expected unsupported command, but got: %v", err)
		}

		if diff := cmp.Diff([]Command{CmdSetFreq}, calls); diff != "" {
			t.Fatalf("unexpected calls (-want +got):\n%s", diff)
		}
		if commits != 1 {
			t.Fatalf("unexpected number of commits: %d", commits)
		}
	})

	t.Run("no commit requested", func(t *testing.T) {
		calls, commits = nil, 0

		if err := d.DispatchBatch(context.Background(), "wlan0", nil, Caller{}); err != nil {
			t.Fatalf("failed to dispatch empty batch: %v", err)
		}
		if commits != 0 {
			t.Fatalf("unexpected number of commits: %d", commits)
		}
	})
}

func TestDispatcherCommitFailed(t *testing.T) {
	errHW := errors.New("hardware fault")

	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdSetFreq: func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
				return StatusCommit, nil
			},
		}),
		Commit: func(context.Context, *Device) error {
			return errHW
		},
	})

	err := d.Dispatch(context.Background(), "wlan0", CmdSetFreq, NewRequest(FreqMHz(2412), nil), Caller{})
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected commit failed, but got: %v", err)
	}
	if !errors.Is(err, errHW) {
		t.Fatalf("expected driver error to be wrapped, but got: %v", err)
	}
}

func TestDispatcherBuiltinCommit(t *testing.T) {
	var commits int
	d := testDispatcher(t, &HandlerDef{
		Commit: func(context.Context, *Device) error {
			commits++
			return nil
		},
	})

	if err := d.Dispatch(context.Background(), "wlan0", CmdCommit, &Request{}, Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}
	if commits != 1 {
		t.Fatalf("unexpected number of commits: %d", commits)
	}

	d = testDispatcher(t, &HandlerDef{})
	err := d.Dispatch(context.Background(), "wlan0", CmdCommit, &Request{}, Caller{})
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("expected unsupported command, but got: %v", err)
	}
}

func TestDispatcherBuiltinGetPriv(t *testing.T) {
	want := []PrivArgs{
		{Cmd: Private(0), SetArgs: NewPrivType(PrivTypeChar, 64, false), Name: "set_psk"},
		{Cmd: Private(1), GetArgs: NewPrivType(PrivTypeInt, 1, true), Name: "get_commits"},
	}

	d := testDispatcher(t, &HandlerDef{PrivateArgs: want})

	desc, _ := Describe(CmdGetPriv)
	req := NewRequest(Point{Length: 4}, make([]byte, 4*24))
	if err := d.Dispatch(context.Background(), "wlan0", CmdGetPriv, req, Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}

	_, b, err := req.Decode(desc)
	if err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}

	got, err := ParsePrivArgs(b)
	if err != nil {
		t.Fatalf("failed to parse private arguments: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected private arguments (-want +got):\n%s", diff)
	}

	// One slot is not enough for two descriptions.
	err = d.Dispatch(context.Background(), "wlan0", CmdGetPriv, NewRequest(Point{Length: 1}, make([]byte, 24)), Caller{})
	if !errors.Is(err, ErrResultTooLarge) {
		t.Fatalf("expected result too large, but got: %v", err)
	}
}

func TestDispatcherPrivateInline(t *testing.T) {
	d := testDispatcher(t, &HandlerDef{
		Private: Handlers(FirstPrivate, map[Command]Handler{
			Private(1): func(_ context.Context, _ *Device, info RequestInfo, args *Args) (Status, error) {
				if info.Cmd != Private(1) {
					t.Errorf("unexpected command: %s", info.Cmd)
				}

				var n Name
				n[0] = 42
				args.Params = n
				return StatusDone, nil
			},
		}),
		PrivateArgs: []PrivArgs{
			{Cmd: Private(1), GetArgs: NewPrivType(PrivTypeByte, 1, true), Name: "get_answer"},
		},
	})

	req := &Request{}
	if err := d.Dispatch(context.Background(), "wlan0", Private(1), req, Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}
	if req.Union[0] != 42 {
		t.Fatalf("unexpected inline result: %d", req.Union[0])
	}
}

func TestDispatcherEvents(t *testing.T) {
	mt := &memTransport{}
	d := NewDispatcher(&Options{
		Transport: mt,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ok := func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
		return StatusDone, nil
	}

	if err := d.Register(&Device{
		Name: "wlan0",
		Handlers: &HandlerDef{
			Standard: Handlers(FirstStandard, map[Command]Handler{
				CmdSetESSID: ok,
				CmdSetRate:  ok,
				CmdGetFreq: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
					args.Params = FreqMHz(2412)
					return StatusDone, nil
				},
			}),
		},
	}); err != nil {
		t.Fatalf("failed to register device: %v", err)
	}

	ctx := context.Background()
	calls := []Call{
		{Cmd: CmdSetESSID, Request: NewRequest(Point{Length: 4, Flags: 1}, []byte("test"))},
		// No event flag.
		{Cmd: CmdSetRate, Request: NewRequest(Param{Value: 11000000}, nil)},
		// GET commands never generate events.
		{Cmd: CmdGetFreq, Request: &Request{}},
	}
	if err := d.DispatchBatch(ctx, "wlan0", calls, Caller{}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}

	want, err := EncodeEvent(Event{Cmd: CmdSetESSID, Params: Point{Flags: 1}, Extra: []byte("test")})
	if err != nil {
		t.Fatalf("failed to encode event: %v", err)
	}

	if diff := cmp.Diff([][]byte{want}, mt.records); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}

	// Failing transports do not fail requests.
	mt.err = errors.New("transport down")
	if err := d.Dispatch(ctx, "wlan0", CmdSetESSID, NewRequest(Point{Length: 4, Flags: 1}, []byte("test")), Caller{}); err != nil {
		t.Fatalf("failed to dispatch with failing transport: %v", err)
	}

	if err := d.SendEvent(ctx, "wlan0", Event{Cmd: EventCustom, Params: Point{}, Extra: []byte("hi")}); err == nil {
		t.Fatal("expected SendEvent to report the transport error")
	}
}

func TestDispatcherEventsRestricted(t *testing.T) {
	mt := &memTransport{}
	d := NewDispatcher(&Options{
		Transport: mt,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	var key []byte
	if err := d.Register(&Device{
		Name: "wlan0",
		Handlers: &HandlerDef{
			Standard: Handlers(FirstStandard, map[Command]Handler{
				CmdSetEncode: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
					key = append([]byte(nil), args.Extra...)
					return StatusDone, nil
				},
			}),
		},
	}); err != nil {
		t.Fatalf("failed to register device: %v", err)
	}

	secret := []byte("SECRETKEY1234")
	req := NewRequest(Point{Length: uint16(len(secret)), Flags: 1}, secret)
	if err := d.Dispatch(context.Background(), "wlan0", CmdSetEncode, req, Caller{Privileged: true}); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}

	if diff := cmp.Diff(secret, key); diff != "" {
		t.Fatalf("unexpected handler key (-want +got):\n%s", diff)
	}

	// The event reports the change without the key.
	want, err := EncodeEvent(Event{Cmd: CmdSetEncode, Params: Point{Flags: 1}})
	if err != nil {
		t.Fatalf("failed to encode event: %v", err)
	}

	if diff := cmp.Diff([][]byte{want}, mt.records); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}

	for _, r := range mt.records {
		if bytes.Contains(r, secret) {
			t.Fatalf("event record contains the key: % x", r)
		}
	}
}

func TestDispatcherDump(t *testing.T) {
	errNoSignal := errors.New("no signal")

	d := testDispatcher(t, &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdGetName: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				args.Params = NewName("IEEE 802.11")
				return StatusDone, nil
			},
			CmdGetESSID: func(_ context.Context, _ *Device, _ RequestInfo, args *Args) (Status, error) {
				args.Params = Point{Flags: 1}
				args.Extra = []byte("home")
				return StatusDone, nil
			},
			CmdGetSens: func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
				return StatusDone, errNoSignal
			},
			CmdSetFreq: func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
				t.Error("dump invoked a SET command")
				return StatusDone, nil
			},
			CmdGetScan: func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
				t.Error("dump invoked a command flagged to be skipped")
				return StatusDone, nil
			},
		}),
		PrivateArgs: []PrivArgs{{Cmd: Private(0), Name: "reset"}},
	})

	results, err := d.Dump(context.Background(), "wlan0", Caller{})
	if err != nil {
		t.Fatalf("failed to dump: %v", err)
	}

	want := []Result{
		{Cmd: CmdGetName, Params: NewName("IEEE 802.11")},
		{Cmd: CmdGetSens, Err: errNoSignal},
		{Cmd: CmdGetESSID, Params: Point{Length: 4, Flags: 1}, Extra: []byte("home")},
	}

	if diff := cmp.Diff(want, results, cmp.Comparer(func(x, y error) bool {
		return errors.Is(x, y)
	})); diff != "" {
		t.Fatalf("unexpected results (-want +got):\n%s", diff)
	}
}

func TestDispatcherDevices(t *testing.T) {
	d := NewDispatcher(&Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	for _, name := range []string{"wlan1", "wlan0"} {
		if err := d.Register(&Device{Name: name, Handlers: &HandlerDef{}}); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	if err := d.Register(&Device{Name: "wlan0", Handlers: &HandlerDef{}}); !errors.Is(err, ErrDeviceExists) {
		t.Fatalf("expected device exists, but got: %v", err)
	}
	if err := d.Register(&Device{Name: "wlan2"}); err == nil {
		t.Fatal("expected an error registering a device without handlers")
	}
	if err := d.Register(&Device{Name: "wlan2", Handlers: &HandlerDef{Version: "1"}}); !errors.Is(err, ErrIncompatibleVersion) {
		t.Fatalf("expected incompatible version, but got: %v", err)
	}

	var names []string
	for _, dev := range d.Devices() {
		names = append(names, dev.Name)
	}
	if diff := cmp.Diff([]string{"wlan0", "wlan1"}, names); diff != "" {
		t.Fatalf("unexpected devices (-want +got):\n%s", diff)
	}

	if err := d.Unregister("wlan1"); err != nil {
		t.Fatalf("failed to unregister: %v", err)
	}
	if err := d.Unregister("wlan1"); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected no device, but got: %v", err)
	}

	err := d.Dispatch(context.Background(), "wlan1", CmdGetName, &Request{}, Caller{})
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected no device, but got: %v", err)
	}
}

func TestDispatcherLocker(t *testing.T) {
	l := &countingLocker{}

	d := NewDispatcher(&Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	err := d.Register(&Device{
		Name:   "wlan0",
		Locker: l,
		Handlers: &HandlerDef{
			Standard: Handlers(FirstStandard, map[Command]Handler{
				CmdSetMode: func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
					if !l.held {
						t.Error("handler invoked without the device lock")
					}
					return StatusCommit, nil
				},
				CmdSetFreq: func(context.Context, *Device, RequestInfo, *Args) (Status, error) {
					return StatusDone, errors.New("failed")
				},
			}),
			Commit: func(context.Context, *Device) error {
				if !l.held {
					t.Error("commit invoked without the device lock")
				}
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to register device: %v", err)
	}

	_ = d.Dispatch(context.Background(), "wlan0", CmdSetMode, NewRequest(Uint(ModeAdHoc), nil), Caller{})
	_ = d.Dispatch(context.Background(), "wlan0", CmdSetFreq, NewRequest(FreqMHz(2412), nil), Caller{})

	if l.held {
		t.Fatal("device lock was not released")
	}

	// Handler, commit and failed handler.
	if want, got := 3, l.locks; want != got {
		t.Fatalf("unexpected number of locks:\n- want: %d\n-  got: %d", want, got)
	}
}

func TestDispatcherConcurrentDevices(t *testing.T) {
	d := NewDispatcher(&Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	type state struct {
		mu      sync.Mutex
		pending int
		commits int
	}

	def := &HandlerDef{
		Standard: Handlers(FirstStandard, map[Command]Handler{
			CmdSetMode: func(_ context.Context, dev *Device, _ RequestInfo, _ *Args) (Status, error) {
				dev.Driver.(*state).pending++
				return StatusCommit, nil
			},
		}),
		Commit: func(_ context.Context, dev *Device) error {
			s := dev.Driver.(*state)
			s.commits++
			s.pending = 0
			return nil
		},
	}

	states := []*state{{}, {}}
	for i, s := range states {
		if err := d.Register(&Device{
			Name:     []string{"wlan0", "wlan1"}[i],
			Handlers: def,
			Locker:   &s.mu,
			Driver:   s,
		}); err != nil {
			t.Fatalf("failed to register device: %v", err)
		}
	}

	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, name := range []string{"wlan0", "wlan1"} {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if err := d.Dispatch(context.Background(), name, CmdSetMode, NewRequest(Uint(ModeAdHoc), nil), Caller{}); err != nil {
					t.Errorf("failed to dispatch: %v", err)
				}
			}(name)
		}
	}
	wg.Wait()

	for i, s := range states {
		if s.commits != n || s.pending != 0 {
			t.Fatalf("device %d: unexpected commits and pending changes: %d, %d", i, s.commits, s.pending)
		}
	}
}

func testDispatcher(t *testing.T, def *HandlerDef) *Dispatcher {
	t.Helper()

	d := NewDispatcher(&Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := d.Register(&Device{Name: "wlan0", Index: 1, Handlers: def}); err != nil {
		t.Fatalf("failed to register device: %v", err)
	}

	return d
}

var _ Transport = &memTransport{}

type memTransport struct {
	mu      sync.Mutex
	records [][]byte
	err     error
}

func (t *memTransport) Publish(_ context.Context, _ *Device, record []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return t.err
	}

	t.records = append(t.records, record)
	return nil
}

var _ sync.Locker = &countingLocker{}

type countingLocker struct {
	held  bool
	locks int
}

func (l *countingLocker) Lock() {
	l.held = true
	l.locks++
}

func (l *countingLocker) Unlock() { l.held = false }
