// Command ddcctl is a small CLI over the ddc library: detecting
// displays, getting/setting VCP features, printing capabilities, and
// dumping/loading VCP settings (spec.md §6).
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/ddcio/ddcci"
	"github.com/ddcio/ddcci/capabilities"
	"github.com/ddcio/ddcci/i2c"
)

var (
	flagDisplay = pflag.IntP("display", "d", 0, "display number, from 'detect' (default: first working display)")
	flagBus     = pflag.Int("bus", -1, "select display by I2C bus number instead of display number")
	flagMfg     = pflag.String("mfg", "", "select display by manufacturer ID")
	flagModel   = pflag.String("model", "", "select display by model name")
	flagSN      = pflag.String("sn", "", "select display by serial text")
	flagVerbose = pflag.BoolP("verbose", "v", false, "log every operation at debug level")
	flagStats   = pflag.Bool("stats", false, "print per-call counts and elapsed time before exiting (per-retry-class counters are not printed)")
	flagConfig  = pflag.String("config", "", "path to a ddcutil-style config file (default: XDG config path)")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <command> [args]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "commands:")
		fmt.Fprintln(os.Stderr, "  detect                      list discovered displays")
		fmt.Fprintln(os.Stderr, "  getvcp <feature-hex>        read one VCP feature")
		fmt.Fprintln(os.Stderr, "  setvcp <feature-hex> <val>  write one VCP feature")
		fmt.Fprintln(os.Stderr, "  capabilities                print the parsed capabilities string")
		fmt.Fprintln(os.Stderr, "  dumpvcp <file>              snapshot every continuous feature to file")
		fmt.Fprintln(os.Stderr, "  loadvcp <file>              replay a dumpvcp file's feature values")
		fmt.Fprintln(os.Stderr, "\nflags:")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, errInfo := loadConfig()
	if errInfo != nil {
		fatal(errInfo.Error())
	}

	ctx := ddc.NewContext()
	if *flagVerbose {
		ctx.Logger.SetLevel(log.DebugLevel)
	}
	if errInfo := ctx.Init(cfg); errInfo != nil {
		fatal(errInfo.Error())
	}
	defer func() {
		if errInfo := ctx.Teardown(); errInfo != nil {
			fmt.Fprintln(os.Stderr, "warning: teardown:", errInfo.Error())
		}
		if *flagStats {
			printStats(ctx)
		}
	}()

	var cmdErr error
	switch args[0] {
	case "detect":
		cmdErr = cmdDetect(ctx)
	case "getvcp":
		cmdErr = cmdGetVCP(ctx, args[1:])
	case "setvcp":
		cmdErr = cmdSetVCP(ctx, args[1:])
	case "capabilities":
		cmdErr = cmdCapabilities(ctx, args[1:])
	case "dumpvcp":
		cmdErr = cmdDumpVCP(ctx, args[1:])
	case "loadvcp":
		cmdErr = cmdLoadVCP(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		pflag.Usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		fatal(cmdErr.Error())
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "ddcctl:", msg)
	os.Exit(1)
}

func loadConfig() (*ddc.Config, *ddc.ErrorInfo) {
	path := *flagConfig
	if path == "" {
		path = ddc.XDGConfigPath()
	}
	return ddc.LoadConfig(path)
}

// selectDisplay resolves the --display/--bus/--mfg/--model/--sn flags
// (in that priority order) against ctx's registry, defaulting to the
// first working display.
func selectDisplay(ctx *ddc.Context) (*ddc.Display, error) {
	reg := ctx.Registry
	if *flagDisplay != 0 {
		d, ok := reg.ByDispNo(*flagDisplay)
		if !ok {
			return nil, fmt.Errorf("no display numbered %d", *flagDisplay)
		}
		return d, nil
	}
	if *flagBus >= 0 {
		for _, d := range reg.Displays {
			if d.Path.Mode == ddc.IOModeI2C && d.Path.I2CBus == *flagBus {
				return d, nil
			}
		}
		return nil, fmt.Errorf("no display on I2C bus %d", *flagBus)
	}
	if *flagMfg != "" || *flagModel != "" || *flagSN != "" {
		for _, d := range reg.Displays {
			if d.State() != ddc.StateCheckedWorking {
				continue
			}
			if *flagMfg != "" && d.Model.ManufacturerID != *flagMfg {
				continue
			}
			if *flagModel != "" && d.Model.ModelName != *flagModel {
				continue
			}
			if *flagSN != "" && (d.EDID == nil || d.EDID.Identity.SerialText != *flagSN) {
				continue
			}
			return d, nil
		}
		return nil, fmt.Errorf("no display matched mfg/model/sn selectors")
	}
	for _, d := range reg.Displays {
		if d.State() == ddc.StateCheckedWorking {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no working display found")
}

func openBus(d *ddc.Display) (*i2c.Bus, error) {
	if d.Path.Mode != ddc.IOModeI2C {
		return nil, fmt.Errorf("display is on the USB transport; getvcp/setvcp/capabilities over USB is not wired into this CLI yet")
	}
	return i2c.Open(d.Path.I2CBus)
}

func cmdDetect(ctx *ddc.Context) error {
	for _, d := range ctx.Registry.Displays {
		switch d.Path.Mode {
		case ddc.IOModeI2C:
			fmt.Printf("Display %d: bus=/dev/i2c-%d state=%s mfg=%s model=%q\n",
				d.DispNo, d.Path.I2CBus, stateString(d.State()), d.Model.ManufacturerID, d.Model.ModelName)
		case ddc.IOModeUSB:
			fmt.Printf("Display %d: usb=%d/%d state=%s\n",
				d.DispNo, d.Path.USBBus, d.Path.USBDevice, stateString(d.State()))
		}
	}
	return nil
}

func stateString(s ddc.State) string {
	switch s {
	case ddc.StateCheckedWorking:
		return "working"
	case ddc.StateCheckedNotWorking:
		return "not-working"
	case ddc.StateRemoved:
		return "removed"
	default:
		return "unchecked"
	}
}

func parseFeature(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid feature code %q: %w", s, err)
	}
	return byte(v), nil
}

func cmdGetVCP(ctx *ddc.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("getvcp requires exactly one feature-code argument")
	}
	feature, err := parseFeature(args[0])
	if err != nil {
		return err
	}
	d, err := selectDisplay(ctx)
	if err != nil {
		return err
	}
	bus, err := openBus(d)
	if err != nil {
		return err
	}
	defer bus.Close()

	h := ddc.NewHandle(d)
	start := time.Now()
	val, errInfo := ddc.GetVCP(h, bus, feature)
	ctx.Stats.Profile("GetVCP", time.Since(start))
	if errInfo != nil {
		return errInfo
	}
	fmt.Printf("VCP %02X: current=%d maximum=%d\n", feature, val.Current, val.Maximum)
	return nil
}

func cmdSetVCP(ctx *ddc.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("setvcp requires a feature-code and a value argument")
	}
	feature, err := parseFeature(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}
	d, err := selectDisplay(ctx)
	if err != nil {
		return err
	}
	bus, err := openBus(d)
	if err != nil {
		return err
	}
	defer bus.Close()

	h := ddc.NewHandle(d)
	start := time.Now()
	errInfo := ddc.SetVCP(h, bus, feature, uint16(value), true)
	ctx.Stats.Profile("SetVCP", time.Since(start))
	if errInfo != nil {
		return errInfo
	}
	return nil
}

func cmdCapabilities(ctx *ddc.Context, _ []string) error {
	d, err := selectDisplay(ctx)
	if err != nil {
		return err
	}
	bus, err := openBus(d)
	if err != nil {
		return err
	}
	defer bus.Close()

	h := ddc.NewHandle(d)
	if cached, ok := ctx.CapCache.Get(d.IdentityKey()); ok {
		printCapabilities(capabilities.Parse(cached))
		return nil
	}
	tree, errInfo := ddc.GetCapabilities(h, bus)
	if errInfo != nil {
		return errInfo
	}
	ctx.CapCache.Put(d.IdentityKey(), tree.Raw)
	printCapabilities(tree)
	return nil
}

func printStats(ctx *ddc.Context) {
	fmt.Fprintln(os.Stderr, "--- call stats ---")
	for fn, cs := range ctx.Stats.Calls() {
		fmt.Fprintf(os.Stderr, "%-16s calls=%d total=%s\n", fn, cs.Count, cs.TotalElapsed)
	}
}
