package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/mdlayher/wext"
	"github.com/mdlayher/wext/internal/config"
	"github.com/mdlayher/wext/internal/softdev"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logPrefix = "wextctl:root"

var (
	// Global flags
	cfgFile      string
	outputFormat string
	logLevel     string

	// Shared state set during PersistentPreRun
	cfg       *config.Config
	disp      *wext.Dispatcher
	radios    map[string]*softdev.Radio
	formatter Formatter
	closers   []io.Closer
)

// rootCmd is the base command for wextctl.
var rootCmd = &cobra.Command{
	Use:   "wextctl",
	Short: "Issue Wireless Extensions requests to software radios",
	Long: `wextctl registers the software radios described by its configuration file
with a Wireless Extensions dispatcher and issues requests against them.
Events generated by the radios are published to NATS and rtnetlink when
configured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if outputFormat != "" {
			cfg.Output = outputFormat
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(log)

		ts, err := transports(cfg, log)
		if err != nil {
			return err
		}

		opts := &wext.Options{Logger: log}
		if len(ts) > 0 {
			opts.Transport = ts
		}
		disp = wext.NewDispatcher(opts)

		radios, err = register(disp, cfg.Devices)
		if err != nil {
			return err
		}

		formatter = NewFormatter(cfg.Output)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		for _, c := range closers {
			_ = c.Close()
		}
		closers = nil
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.wext/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default \"table\")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// newLogger creates the logger described by cfg. Log files are rotated.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		}
		closers = append(closers, lj)
		w = lj
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// transports creates the event transports described by cfg.
func transports(cfg *config.Config, log *slog.Logger) (wext.Transports, error) {
	var ts wext.Transports

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("wextctl"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.NATSURL, err)
		}
		closers = append(closers, closerFunc(func() error {
			return nc.Drain()
		}))

		ts = append(ts, wext.NewNATSTransport(nc, cfg.SubjectPrefix, log))
		log.Debug(fmt.Sprintf("%s - publishing events to %s", logPrefix, cfg.NATSURL))
	}

	if cfg.Netlink {
		t, err := netlinkTransport()
		if err != nil {
			return nil, fmt.Errorf("failed to open rtnetlink transport: %w", err)
		}

		ts = append(ts, t)
	}

	return ts, nil
}

// register creates and registers a software radio for each device.
func register(d *wext.Dispatcher, devs []config.Device) (map[string]*softdev.Radio, error) {
	out := make(map[string]*softdev.Radio, len(devs))
	for _, dc := range devs {
		rc := softdev.Config{
			Name:    dc.Name,
			Index:   dc.Index,
			SSID:    dc.SSID,
			Channel: dc.Channel,
		}
		if dc.HardwareAddr != "" {
			mac, err := net.ParseMAC(dc.HardwareAddr)
			if err != nil {
				return nil, err
			}
			rc.HardwareAddr = mac
		}
		if dc.Mode != "" {
			m, err := wext.ParseMode(dc.Mode)
			if err != nil {
				return nil, err
			}
			rc.Mode = uint32(m)
		}
		for _, n := range dc.Networks {
			bssid, err := net.ParseMAC(n.BSSID)
			if err != nil {
				return nil, err
			}
			rc.Networks = append(rc.Networks, softdev.BSS{
				BSSID:     bssid,
				SSID:      n.SSID,
				Frequency: n.Frequency,
				Signal:    n.Signal,
			})
		}

		r := softdev.New(rc)
		if err := d.Register(r.Device()); err != nil {
			return nil, err
		}
		out[dc.Name] = r
	}

	return out, nil
}

type closerFunc func() error

func (fn closerFunc) Close() error { return fn() }
