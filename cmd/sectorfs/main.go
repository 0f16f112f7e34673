// sectorfs formats and manipulates a sector file system image.
//
//	sectorfs --format
//	sectorfs --cp notes.txt docs/notes
//	sectorfs --mkdir docs/
//	sectorfs --lr /
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/mit-pdos/go-sectorfs/config"
	"github.com/mit-pdos/go-sectorfs/filesys"
	"github.com/mit-pdos/go-sectorfs/metrics"
	"github.com/mit-pdos/go-sectorfs/util"
)

var (
	configPath = pflag.StringP("config", "c", "", "YAML configuration file")
	initConfig = pflag.String("init-config", "", "write a sample configuration to this file and exit")

	format   = pflag.BoolP("format", "f", false, "format the device before running other commands")
	cp       = pflag.Bool("cp", false, "copy host file ARG0 to file system path ARG1")
	catPath  = pflag.String("cat", "", "print the contents of a file")
	mkdir    = pflag.String("mkdir", "", "create a directory (trailing / optional)")
	ls       = pflag.String("ls", "", "list a directory")
	lr       = pflag.String("lr", "", "list a directory recursively")
	rm       = pflag.String("rm", "", "remove a file or directory")
	rr       = pflag.String("rr", "", "remove a directory and everything below it")
	dump     = pflag.BoolP("print", "p", false, "dump the file system metadata")
	dumpStat = pflag.Bool("metrics", false, "print operation metrics on exit")
	trace    = pflag.Uint64P("debug", "d", 0, "trace level, overrides logging.trace")
)

func setupLogging(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	util.Debug = cfg.Logging.Trace
	if *trace > 0 {
		util.Debug = *trace
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func main() {
	pflag.Parse()

	if *initConfig != "" {
		f, err := os.Create(*initConfig)
		if err != nil {
			fatal("Failed to create configuration file.", err)
		}
		if err := config.WriteSample(f); err != nil {
			fatal("Failed to write configuration.", err)
		}
		if err := f.Close(); err != nil {
			fatal("Failed to write configuration.", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("Failed to load configuration.", err)
	}
	setupLogging(cfg)

	d, err := cfg.OpenDisk()
	if err != nil {
		fatal("Failed to open disk.", err, "type", cfg.Disk.Type, "path", cfg.Disk.Path)
	}
	defer d.Close()

	opts := []filesys.Option{
		filesys.WithDirEntries(cfg.FS.DirEntries),
		filesys.WithMaxOpenFiles(cfg.FS.MaxOpenFiles),
	}
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled || *dumpStat {
		opts = append(opts, filesys.WithMetrics(metrics.NewPrometheus(reg)))
	}
	fs, err := filesys.New(d, *format, opts...)
	if err != nil {
		fatal("Failed to bring up the file system.", err)
	}

	if err := run(fs, cfg); err != nil {
		fs.Close()
		d.Close()
		fatal("Command failed.", err)
	}
	if *dumpStat {
		printMetrics(reg)
	}
	if err := fs.Close(); err != nil {
		slog.Error("Failed to close the file system.", "err", err)
	}
}

func run(fs *filesys.FileSystem, cfg *config.Config) error {
	chunk := cfg.Disk.SectorSize
	if *cp {
		args := pflag.Args()
		if len(args) != 2 {
			return fmt.Errorf("--cp expects a host file and a file system path, got %d arguments", len(args))
		}
		if err := copyIn(fs, args[0], args[1], chunk); err != nil {
			return err
		}
	}
	if *mkdir != "" {
		path := *mkdir
		if path[len(path)-1] != '/' {
			path += "/"
		}
		if err := fs.Create(path, 0); err != nil {
			return err
		}
	}
	if *catPath != "" {
		if err := cat(fs, *catPath, os.Stdout, chunk); err != nil {
			return err
		}
	}
	if *rm != "" {
		if err := fs.Remove(*rm, false); err != nil {
			return err
		}
	}
	if *rr != "" {
		if err := fs.Remove(*rr, true); err != nil {
			return err
		}
	}
	if *ls != "" {
		if err := list(fs, *ls, false, os.Stdout); err != nil {
			return err
		}
	}
	if *lr != "" {
		if err := list(fs, *lr, true, os.Stdout); err != nil {
			return err
		}
	}
	if *dump {
		return fs.Print(os.Stdout)
	}
	return nil
}

func printMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		slog.Error("Failed to gather metrics.", "err", err)
		return
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, l := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", l.GetName(), l.GetValue())
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			}
			fmt.Fprintf(os.Stderr, "%s%s %g\n", mf.GetName(), labels, v)
		}
	}
}

func fatal(msg string, err error, args ...any) {
	slog.Error(msg, append([]any{"err", err}, args...)...)
	os.Exit(1)
}
