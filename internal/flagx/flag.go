// Package flagx lets several configuration layers share os.Args: each layer
// keeps only the flags it owns and parses them on a private FlagSet.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs returns the subset of args made of allowed flags and their
// values. Both "-f value" and "-f=value" forms are recognised; a value is
// taken from the next argument only when it does not start with "-".
// The result is never nil.
func FilterArgs(args []string, allowed []string) []string {
	owned := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		owned[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := owned[name]; ok {
				out = append(out, arg)
			}
			continue
		}

		if _, ok := owned[arg]; !ok {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// LookupValue returns the value of the first recognised spelling in names
// (for example "config" and "c") found in args, or "" when none is present.
// Unknown flags and parse errors are ignored.
func LookupValue(args []string, names ...string) string {
	dashed := make([]string, 0, len(names)*2)
	for _, n := range names {
		dashed = append(dashed, "-"+n, "--"+n)
	}

	var value string
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, n := range names {
		fs.StringVar(&value, n, "", "")
	}
	_ = fs.Parse(FilterArgs(args, dashed))
	return value
}

// ConfigFile returns the JSON config path given with -c or -config.
func ConfigFile(args []string) string {
	return LookupValue(args, "config", "c")
}

// EnvFile returns the dotenv path given with -env.
func EnvFile(args []string) string {
	return LookupValue(args, "env")
}
