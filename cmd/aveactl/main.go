// aveactl controls Elgato Avea bulbs from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lightctl/avea/internal/avea"
	"github.com/lightctl/avea/internal/ble"
	"github.com/lightctl/avea/internal/config"
)

const usage = `usage: aveactl [flags] <command> [args]

commands:
  scan                     list nearby Avea bulbs
  status                   show the bulb's color, brightness and name
  color <w> <r> <g> <b>    set the color (each channel 0-4095)
  rgb <r> <g> <b>          set the color from 8-bit RGB
  brightness <value>       set the brightness (0-4095)
  name [new-name]          show or set the bulb's name
  fade <r> <g> <b>         fade smoothly to an 8-bit RGB color
  fw                       show the bulb's firmware revision

flags:
`

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/aveactl/config.yaml)")
	address := flag.String("address", "", "bulb address (overrides config)")
	fade := flag.Duration("fade", time.Second, "bulb-side fade time for color commands")
	duration := flag.Duration("duration", 0, "fade command: total transition time (default from config)")
	rate := flag.Int("rate", 0, "fade command: color updates per second (default from config)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	if *address != "" {
		cfg.Bulb.Address = *address
	}
	if *duration > 0 {
		cfg.Transition.Duration = config.Duration(*duration)
	}
	if *rate > 0 {
		cfg.Transition.StepsPerSecond = *rate
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Ctrl+C cancels long-running commands such as fade.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := run(ctx, cfg, cmd, args, *fade); err != nil {
		fatal("%s: %v", cmd, err)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string, fade time.Duration) error {
	adapter := ble.NewHardwareAdapter()

	if cmd == "scan" {
		return runScan(ctx, adapter, cfg)
	}

	session, err := dial(ctx, adapter, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	switch cmd {
	case "status":
		return runStatus(ctx, session)
	case "color":
		if len(args) != 4 {
			return fmt.Errorf("expected <w> <r> <g> <b>")
		}
		c, err := parseColor(args)
		if err != nil {
			return err
		}
		return session.SetColor(c, fade)
	case "rgb":
		r, g, b, err := parseRGB(args)
		if err != nil {
			return err
		}
		return session.SetRGB(r, g, b, fade)
	case "brightness":
		if len(args) != 1 {
			return fmt.Errorf("expected <value>")
		}
		value, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		return session.SetBrightness(value)
	case "name":
		if len(args) == 0 {
			if err := session.EnableNotifications(); err != nil {
				return err
			}
			name, err := session.Name(ctx)
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		}
		return session.SetName(args[0])
	case "fade":
		r, g, b, err := parseRGB(args)
		if err != nil {
			return err
		}
		// Seed the transition start point from the bulb's actual color.
		if err := session.EnableNotifications(); err != nil {
			return err
		}
		if _, err := session.Color(ctx); err != nil {
			return err
		}
		return session.FadeRGB(ctx, r, g, b, cfg.Transition.Duration.Duration(), cfg.Transition.StepsPerSecond)
	case "fw":
		fw, err := session.FirmwareVersion()
		if err != nil {
			return err
		}
		fmt.Println(fw)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command")
	}
}

func runScan(ctx context.Context, adapter ble.Adapter, cfg *config.Config) error {
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	scanCtx, cancel := context.WithTimeout(ctx, cfg.Bulb.ScanTimeout.Duration())
	defer cancel()

	slog.Info("scanning for bulbs", "timeout", cfg.Bulb.ScanTimeout)
	devices, err := adapter.Scan(scanCtx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no bulbs found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%-20s %s (RSSI %d)\n", d.Name, d.Address, d.RSSI)
	}
	return nil
}

func runStatus(ctx context.Context, session *avea.Session) error {
	if err := session.EnableNotifications(); err != nil {
		return err
	}
	c, err := session.Color(ctx)
	if err != nil {
		return err
	}
	brightness, err := session.Brightness(ctx)
	if err != nil {
		return err
	}
	name, err := session.Name(ctx)
	if err != nil {
		return err
	}
	r, g, b := c.RGB()
	fmt.Printf("name:       %s\n", name)
	fmt.Printf("color:      w=%d r=%d g=%d b=%d (#%02X%02X%02X)\n", c.White, c.Red, c.Green, c.Blue, r, g, b)
	fmt.Printf("brightness: %d\n", brightness)
	return nil
}

// dial resolves the target bulb (configured address, or the first bulb a
// scan finds) and opens a session to it.
func dial(ctx context.Context, adapter ble.Adapter, cfg *config.Config) (*avea.Session, error) {
	device := ble.Device{Address: cfg.Bulb.Address}
	if device.Address == "" {
		if err := adapter.Enable(); err != nil {
			return nil, fmt.Errorf("enable adapter: %w", err)
		}
		scanCtx, cancel := context.WithTimeout(ctx, cfg.Bulb.ScanTimeout.Duration())
		defer cancel()
		devices, err := adapter.Scan(scanCtx)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("no bulb configured and none found by scan")
		}
		device = devices[0]
		slog.Info("using first bulb found", "name", device.Name, "address", device.Address)
	}

	return avea.Dial(ctx, adapter, device, avea.SessionOptions{
		ReplyTimeout: cfg.Bulb.ReplyTimeout.Duration(),
		SettleDelay:  cfg.Bulb.SettleDelay.Duration(),
	})
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if written, err := config.WriteDefault(); err == nil && written != "" {
		slog.Info("wrote default config", "path", written)
	}
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err != nil {
		return config.Default(), nil
	}
	return config.Load(defaultPath)
}

func parseChannel(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("value %q: %w", s, err)
	}
	if v > uint64(avea.MaxChannel) {
		return 0, fmt.Errorf("value %d exceeds %d", v, avea.MaxChannel)
	}
	return uint16(v), nil
}

func parseColor(args []string) (avea.Color, error) {
	var values [4]uint16
	for i, arg := range args {
		v, err := parseChannel(arg)
		if err != nil {
			return avea.Color{}, err
		}
		values[i] = v
	}
	return avea.Color{White: values[0], Red: values[1], Green: values[2], Blue: values[3]}, nil
}

func parseRGB(args []string) (r, g, b uint8, err error) {
	if len(args) != 3 {
		return 0, 0, 0, fmt.Errorf("expected <r> <g> <b>")
	}
	var values [3]uint8
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("value %q: %w", arg, err)
		}
		values[i] = uint8(v)
	}
	return values[0], values[1], values[2], nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "aveactl: "+format+"\n", args...)
	os.Exit(1)
}
