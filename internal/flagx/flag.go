// Package flagx lets several components read their own flags from one
// command line without tripping over each other's.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnv names the environment variable consulted when no -c/-config
// flag is given.
const ConfigEnv = "FILESTORE_CONFIG"

func flagName(arg string) string {
	name, _, _ := strings.Cut(arg, "=")
	return "-" + strings.TrimLeft(name, "-")
}

// FilterArgs keeps only the allowed flags of args, with their values.
// "-x" and "--x" are the same flag. Values may follow as a separate token
// ("-c conf.json") or inline ("--config=conf.json"). A flag listed in
// boolFlags never takes the following token as its value; booleans are set
// false with the inline form ("-f=false").
func FilterArgs(args []string, allowedFlags []string, boolFlags ...string) []string {
	allowed := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = false
	}
	for _, f := range boolFlags {
		allowed[flagName(f)] = true
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		isBool, ok := allowed[flagName(arg)]
		if !ok {
			continue
		}
		filtered = append(filtered, arg)
		if strings.Contains(arg, "=") || isBool {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFile returns the JSON config path given by -c or -config, falling
// back to $FILESTORE_CONFIG. Empty means no file.
func ConfigFile() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	if config == "" {
		config = os.Getenv(ConfigEnv)
	}
	return config
}
