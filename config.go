package ddc

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ddcio/ddcci/status"
)

// Config is the parsed XDG config file content (spec.md §6). No pack
// library covers this line-oriented `[section]`/`key=value` dialect, so
// it is parsed directly with bufio.Scanner (see DESIGN.md).
type Config struct {
	MaxTries               map[string]int // class name -> cap, from "maxtries=a,b,c"
	SleepMultiplier        float64
	HasSleepMultiplier     bool
	DisableDynamicSleep    bool
	DisableDisplaysCache   bool
	DisableCapabilityCache bool
	EnableUSB              bool
	EDIDReadSize           int
}

// DefaultConfig returns the library's defaults absent any config file.
func DefaultConfig() *Config {
	return &Config{
		MaxTries:     map[string]int{},
		EDIDReadSize: 128,
	}
}

// LoadConfig reads and parses path. A missing file is not an error — it
// simply yields DefaultConfig() (spec.md §6 describes the config file as
// optional, overriding only what it mentions).
func LoadConfig(path string) (*Config, *status.ErrorInfo) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, status.NewError(status.StatusBadConfigurationFile, "ddc.LoadConfig", err.Error())
	}
	defer f.Close()

	section := ""
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			continue
		}
		if section != "ddcutil" && section != "" {
			continue // recognize only the relevant section, per spec.md §6
		}
		if err := applyOption(cfg, line); err != nil {
			return nil, status.NewError(status.StatusBadConfigurationFile, "ddc.LoadConfig",
				fmt.Sprintf("%s:%d: %s", path, lineNo, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, status.NewError(status.StatusBadConfigurationFile, "ddc.LoadConfig", err.Error())
	}
	return cfg, nil
}

func applyOption(cfg *Config, line string) error {
	key, value, hasValue := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "maxtries":
		if !hasValue {
			return fmt.Errorf("maxtries requires a value")
		}
		parts := strings.Split(value, ",")
		names := []string{"write-only", "write-read", "multi-part-write", "multi-part-read"}
		for i, p := range parts {
			if i >= len(names) {
				break
			}
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return fmt.Errorf("maxtries: %w", err)
			}
			cfg.MaxTries[names[i]] = n
		}
	case "sleep-multiplier":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("sleep-multiplier: %w", err)
		}
		cfg.SleepMultiplier = f
		cfg.HasSleepMultiplier = true
	case "disable-dynamic-sleep":
		cfg.DisableDynamicSleep = true
	case "disable-displays-cache":
		cfg.DisableDisplaysCache = true
	case "disable-capabilities-cache":
		cfg.DisableCapabilityCache = true
	case "enable-usb":
		cfg.EnableUSB = true
	case "disable-usb":
		cfg.EnableUSB = false
	case "edid-read-size":
		n, err := strconv.Atoi(value)
		if err != nil || (n != 128 && n != 256) {
			return fmt.Errorf("edid-read-size must be 128 or 256")
		}
		cfg.EDIDReadSize = n
	default:
		// Unknown options are ignored; forward compatibility with a
		// config file written for a newer version of this tool.
	}
	return nil
}

// XDGConfigPath returns the conventional path for this tool's config
// file under $XDG_CONFIG_HOME (or ~/.config as fallback).
func XDGConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir + "/ddcci/config"
	}
	home, _ := os.UserHomeDir()
	return home + "/.config/ddcci/config"
}

// XDGStatePath returns the conventional path for persisted state files
// under $XDG_STATE_HOME (or ~/.local/state as fallback).
func XDGStatePath(name string) string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir + "/ddcci/" + name
	}
	home, _ := os.UserHomeDir()
	return home + "/.local/state/ddcci/" + name
}
