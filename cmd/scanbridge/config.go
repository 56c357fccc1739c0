package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type config struct {
	Addr   string
	Driver string
	Device string

	Folder struct {
		Path string
		Idle time.Duration
	}
	Sim struct {
		Pages          string
		UIControllable bool `mapstructure:"ui-controllable"`
	}

	OpenRetry time.Duration `mapstructure:"open-retry"`
	LogLevel  string        `mapstructure:"log-level"`
	LogFormat string        `mapstructure:"log-format"`
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file.")
	fs.String("addr", "0.0.0.0:8181", "Address to bind the websocket and HTTP server to.")
	fs.String("driver", "sim", "Device driver to use (sim, folder).")
	fs.String("device", "", "Source name to open. Empty selects the default source.")
	fs.String("folder.path", "./inbox", "Directory the scanner writes pages into (folder driver).")
	fs.Duration("folder.idle", 3*time.Second, "A batch ends after no new page for this long (folder driver).")
	fs.String("sim.pages", "", "Glob of image files served as pages (sim driver).")
	fs.Bool("sim.ui-controllable", true, "Whether the simulated source can hide its UI.")
	fs.Duration("open-retry", 30*time.Second, "How long to retry loading the device manager at startup.")
	fs.String("log-level", "info", "Log level (debug, info, warn, error).")
	fs.String("log-format", "text", "Log format (text, json).")
}

func loadConfig(fs *pflag.FlagSet) (*config, error) {
	v := viper.New()
	v.SetEnvPrefix("scanbridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	opt := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opt)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opt)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}
