// Command pricectl inspects artifact bundles, queries a running prediction
// server and reads the prediction log.
package main

import (
	"flag"
	"fmt"
	"os"

	"autoprice/internal/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const usage = `usage: pricectl <command> [flags]

commands:
  verify    load a bundle and run a default prediction
  predict   predict one payload (local bundle or -server)
  stats     print model scores and top features
  options   print accepted categorical values
  stream    predict newline-delimited payloads from stdin over a websocket
  history   read the prediction log
`

type command func(args []string) error

var commands = map[string]command{
	"verify":  runVerify,
	"predict": runPredict,
	"stats":   runStats,
	"options": runOptions,
	"stream":  runStream,
	"history": runHistory,
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err := cmd(os.Args[2:]); err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

// newFlagSet registers the flags every command shares.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	return fs, logLevel
}

func setupLogging(level string) error {
	_, err := logging.Setup(logging.Options{Level: level, Format: "console"})
	return err
}
