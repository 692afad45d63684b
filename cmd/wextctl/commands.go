package main

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/mdlayher/wext"
	"github.com/mdlayher/wext/internal/softdev"
	"github.com/spf13/cobra"
)

// A deviceRow is one registered device.
type deviceRow struct {
	Name   string `json:"name" yaml:"name"`
	Index  int    `json:"index" yaml:"index"`
	Driver string `json:"driver" yaml:"driver"`
}

// A commandRow is the metadata of one command.
type commandRow struct {
	Code  string `json:"code" yaml:"code"`
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Token uint16 `json:"token_size" yaml:"token_size"`
	Min   uint16 `json:"min_tokens" yaml:"min_tokens"`
	Max   uint16 `json:"max_tokens" yaml:"max_tokens"`
	Flags string `json:"flags" yaml:"flags"`
}

// A valueRow is the outcome of one request.
type valueRow struct {
	Command string `json:"command" yaml:"command"`
	Value   string `json:"value" yaml:"value"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// A privRow is one private command of a device.
type privRow struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
	Set  string `json:"set_args" yaml:"set_args"`
	Get  string `json:"get_args" yaml:"get_args"`
}

// A bssRow is one scan result.
type bssRow struct {
	BSSID     string `json:"bssid" yaml:"bssid"`
	SSID      string `json:"ssid" yaml:"ssid"`
	Frequency int    `json:"frequency" yaml:"frequency"`
	Channel   int    `json:"channel" yaml:"channel"`
	Signal    int    `json:"signal" yaml:"signal"`
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List registered devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows []deviceRow
		for _, d := range disp.Devices() {
			rows = append(rows, deviceRow{
				Name:   d.Name,
				Index:  d.Index,
				Driver: fmt.Sprintf("%T", d.Driver),
			})
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the metadata of standard commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows []commandRow
		for _, c := range wext.StandardCommands() {
			d, _ := wext.Describe(c)
			rows = append(rows, commandRow{
				Code:  fmt.Sprintf("0x%04x", uint16(c)),
				Name:  c.String(),
				Type:  d.HeaderType.String(),
				Token: d.TokenSize,
				Min:   d.MinTokens,
				Max:   d.MaxTokens,
				Flags: formatFlags(d.Flags),
			})
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <device>",
	Short: "Perform every GET command a device supports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := disp.Dump(cmd.Context(), args[0], wext.CurrentCaller())
		if err != nil {
			return fmt.Errorf("failed to dump %s: %w", args[0], err)
		}

		rows := make([]valueRow, 0, len(results))
		for _, r := range results {
			d, _ := wext.Describe(r.Cmd)
			rows = append(rows, newValueRow(r.Cmd, d, r.Params, r.Extra, r.Err))
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <device> <command>...",
	Short: "Perform GET commands, such as SIOCGIWFREQ",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([]valueRow, 0, len(args)-1)
		for _, s := range args[1:] {
			c, err := parseCommand(s)
			if err != nil {
				return err
			}
			if !c.IsGet() {
				return fmt.Errorf("%s is not a GET command", c)
			}

			rows = append(rows, get(cmd, args[0], c))
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <device> <command> <value> [<command> <value>]...",
	Short: "Perform SET commands as one request, committing once",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 3 || len(args)%2 != 1 {
			return errors.New("expected a device followed by command and value pairs")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var calls []wext.Call
		for i := 1; i < len(args); i += 2 {
			c, err := parseCommand(args[i])
			if err != nil {
				return err
			}
			if !c.IsSet() {
				return fmt.Errorf("%s is not a SET command", c)
			}

			d, err := disp.Descriptor(args[0], c)
			if err != nil {
				return err
			}

			req, err := setRequest(c, d, args[i+1])
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", c, err)
			}

			calls = append(calls, wext.Call{Cmd: c, Request: req})
		}

		if err := disp.DispatchBatch(cmd.Context(), args[0], calls, wext.CurrentCaller()); err != nil {
			return fmt.Errorf("failed to set %s: %w", args[0], err)
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(radios[args[0]].State()))
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <device>",
	Short: "Trigger a scan and list its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller := wext.CurrentCaller()
		if err := disp.Dispatch(cmd.Context(), args[0], wext.CmdSetScan, &wext.Request{}, caller); err != nil {
			return fmt.Errorf("failed to trigger scan: %w", err)
		}

		d, _ := wext.Describe(wext.CmdGetScan)
		req := getRequest(d)
		if err := disp.Dispatch(cmd.Context(), args[0], wext.CmdGetScan, req, caller); err != nil {
			return fmt.Errorf("failed to get scan results: %w", err)
		}

		_, extra, err := req.Decode(d)
		if err != nil {
			return err
		}

		bss, err := softdev.ParseScan(extra)
		if err != nil {
			return err
		}

		rows := make([]bssRow, 0, len(bss))
		for _, b := range bss {
			rows = append(rows, bssRow{
				BSSID:     b.BSSID.String(),
				SSID:      b.SSID,
				Frequency: b.Frequency,
				Channel:   wext.FrequencyToChannel(b.Frequency),
				Signal:    b.Signal,
			})
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

var associateCmd = &cobra.Command{
	Use:   "associate <device> <bssid>",
	Short: "Simulate an association and publish the event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, ok := radios[args[0]]
		if !ok {
			return fmt.Errorf("%w: %s", wext.ErrNoDevice, args[0])
		}

		bssid, err := net.ParseMAC(args[1])
		if err != nil {
			return err
		}

		return r.Associate(cmd.Context(), disp, bssid)
	},
}

var privCmd = &cobra.Command{
	Use:   "priv <device> [<name> [<value>]]",
	Short: "List or invoke the private commands of a device",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pa, err := privArgs(cmd, args[0])
		if err != nil {
			return err
		}

		if len(args) == 1 {
			rows := make([]privRow, 0, len(pa))
			for _, a := range pa {
				rows = append(rows, privRow{
					Code: a.Cmd.String(),
					Name: a.Name,
					Set:  a.SetArgs.String(),
					Get:  a.GetArgs.String(),
				})
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
			return nil
		}

		var a *wext.PrivArgs
		for i := range pa {
			if pa[i].Name == args[1] {
				a = &pa[i]
				break
			}
		}
		if a == nil {
			return fmt.Errorf("%s has no private command %q", args[0], args[1])
		}

		d := a.Descriptor()
		if a.Cmd.IsGet() {
			fmt.Fprint(cmd.OutOrStdout(), formatter.Format([]valueRow{get(cmd, args[0], a.Cmd)}))
			return nil
		}

		var value string
		if len(args) == 3 {
			value = args[2]
		}

		req, err := setRequest(a.Cmd, d, value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", a.Name, err)
		}

		if err := disp.Dispatch(cmd.Context(), args[0], a.Cmd, req, wext.CurrentCaller()); err != nil {
			return fmt.Errorf("failed to invoke %s: %w", a.Name, err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(associateCmd)
	rootCmd.AddCommand(privCmd)
}

// get performs a single GET command.
func get(cmd *cobra.Command, dev string, c wext.Command) valueRow {
	d, err := disp.Descriptor(dev, c)
	if err != nil {
		return newValueRow(c, d, nil, nil, err)
	}

	req := getRequest(d)
	if err := disp.Dispatch(cmd.Context(), dev, c, req, wext.CurrentCaller()); err != nil {
		return newValueRow(c, d, nil, nil, err)
	}

	p, extra, err := req.Decode(d)
	return newValueRow(c, d, p, extra, err)
}

// privArgs retrieves the private commands of a device with SIOCGIWPRIV.
func privArgs(cmd *cobra.Command, dev string) ([]wext.PrivArgs, error) {
	d, _ := wext.Describe(wext.CmdGetPriv)
	req := getRequest(d)
	if err := disp.Dispatch(cmd.Context(), dev, wext.CmdGetPriv, req, wext.CurrentCaller()); err != nil {
		return nil, fmt.Errorf("failed to list private commands: %w", err)
	}

	_, extra, err := req.Decode(d)
	if err != nil {
		return nil, err
	}

	return wext.ParsePrivArgs(extra)
}

func newValueRow(c wext.Command, d wext.Descriptor, p wext.Params, extra []byte, err error) valueRow {
	r := valueRow{Command: c.String()}
	if err != nil {
		r.Error = err.Error()
		return r
	}

	r.Value = formatValue(c, d, p, extra)
	return r
}

func formatFlags(f wext.DescriptorFlags) string {
	var s []string
	if f&wext.FlagDump != 0 {
		s = append(s, "nodump")
	}
	if f&wext.FlagEvent != 0 {
		s = append(s, "event")
	}
	if f&wext.FlagRestrict != 0 {
		s = append(s, "restrict")
	}
	if f&wext.FlagWait != 0 {
		s = append(s, "wait")
	}
	if len(s) == 0 {
		return "-"
	}

	return strings.Join(s, ",")
}
