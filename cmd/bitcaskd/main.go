// Command bitcaskd is a small front end for the storage engine: open a
// database directory and run one put/get/del/stats/compact operation
// against it.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"bitcaskd/engine"
	"bitcaskd/internal/config"
	"bitcaskd/internal/logging"

	"github.com/sirupsen/logrus"
)

const fillCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomPayload builds a length-byte random string for the fill subcommand.
func randomPayload(length int) string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(fillCharset[r.Intn(len(fillCharset))])
	}
	return b.String()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "bitcaskd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("bitcaskd", flag.ContinueOnError)
	preset := fs.String("preset", "standard", "named config preset: small, standard, xlarge")
	configPath := fs.String("config", "", "path to a JSON config file (overrides -preset)")
	shards := fs.Int("shards", 0, "override NumShards (0 keeps the preset/config value)")
	maxSegSize := fs.Int64("max-segment-size", 0, "override MaxLogFileSize in bytes (0 keeps the preset/config value)")
	logLevel := fs.String("log-level", "info", "logrus level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		logging.SetLevel(lvl)
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: bitcaskd [flags] <put|get|del|stats|compact|fill> <dir> [args...]")
	}
	cmd, dir := rest[0], rest[1]
	cmdArgs := rest[2:]

	cfg, err := resolveConfig(*configPath, *preset)
	if err != nil {
		return err
	}
	if *shards > 0 {
		cfg.NumShards = *shards
	}
	if *maxSegSize > 0 {
		cfg.MaxLogFileSize = *maxSegSize
	}

	eng, err := engine.Open(dir, cfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer eng.Close()

	switch cmd {
	case "put":
		return doPut(eng, cmdArgs)
	case "get":
		return doGet(eng, cmdArgs)
	case "del":
		return doDel(eng, cmdArgs)
	case "stats":
		return doStats(eng)
	case "compact":
		return eng.Compact()
	case "fill":
		return doFill(eng, cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func resolveConfig(path, preset string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.Preset(preset)
}

func doPut(eng *engine.Engine, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: put <dir> <key> <value>")
	}
	return eng.Put([]byte(args[0]), []byte(args[1]))
}

func doGet(eng *engine.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <dir> <key>")
	}
	value, ok, err := eng.Get([]byte(args[0]))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("key not found")
	}
	fmt.Println(string(value))
	return nil
}

func doDel(eng *engine.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: del <dir> <key>")
	}
	_, err := eng.Remove([]byte(args[0]))
	return err
}


// doFill writes count records with keys fill-0, fill-1, ... and random
// values of the given length,
// useful for exercising rollover and compaction without a real workload.
func doFill(eng *engine.Engine, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: fill <dir> <count> <value-length>")
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count <= 0 {
		return fmt.Errorf("count must be a positive integer")
	}
	valueLen, err := strconv.Atoi(args[1])
	if err != nil || valueLen <= 0 {
		return fmt.Errorf("value-length must be a positive integer")
	}

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("fill-%d", i)
		if err := eng.Put([]byte(key), []byte(randomPayload(valueLen))); err != nil {
			return fmt.Errorf("fill key %s: %w", key, err)
		}
	}
	return nil
}

func doStats(eng *engine.Engine) error {
	s := eng.Stats()
	fmt.Printf("keys=%d segments=%d activeSize=%d totalSize=%d writes=%d reads=%d compactions=%d\n",
		s.NumKeys, s.NumSegments, s.ActiveSegSize, s.TotalDiskSize, s.WriteCount, s.ReadCount, s.CompactCount)
	return nil
}
