// Package flagx holds the small helpers behind the layered configuration of
// the drivesync binaries: argument filtering so that each config layer parses
// only its own flags, config file lookup, and environment overlays.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// flagName strips one or two leading dashes, the spellings the flag package
// accepts interchangeably.
func flagName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "--" {
		return "", false
	}
	name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if name == "" {
		return "", false
	}
	return name, true
}

// FilterArgs returns the allowed flags from args together with their values,
// in their original order. allowed lists flag names ("c", "config"); a
// leading dash in an entry is ignored, and "-x" and "--x" both match "x".
//
// "-c conf.json" and "-c=conf.json" forms are recognized. A token starting
// with "-" is never consumed as the value of the preceding flag, and
// everything after a bare "--" is dropped.
func FilterArgs(args []string, allowed []string) []string {
	names := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if n, ok := flagName(a); ok {
			names[n] = struct{}{}
		} else {
			names[a] = struct{}{}
		}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		name, ok := flagName(arg)
		if !ok {
			continue
		}

		name, _, hasValue := strings.Cut(name, "=")
		if _, ok := names[name]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigPath returns the config file named by -c or -config in args (the
// last one wins), falling back to the envKey variable, or "".
func ConfigPath(args []string, envKey string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"c", "config"}))

	if path == "" && envKey != "" {
		path = os.Getenv(envKey)
	}
	return path
}
