package main

import (
	"flag"
	"io"
	"time"

	"github.com/benz9527/rbkv/observability"
	"github.com/benz9527/rbkv/xlog"
)

type config struct {
	logLevel        string
	logEncoder      string
	logFile         string
	metrics         string
	metricsAddr     string
	metricsInterval time.Duration
	concurrent      bool
}

func parseFlags(args []string, errOut io.Writer) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("rbapp", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn or error (default $XLOG_LVL or debug)")
	fs.StringVar(&cfg.logEncoder, "log-encoder", "json", "Log encoder: json or text")
	fs.StringVar(&cfg.logFile, "log-file", "", "Write the logs to the file instead of stderr")
	fs.StringVar(&cfg.metrics, "metrics", "none", "Metrics exporter: none, stdout or prometheus")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", ":9464", "Prometheus scrape address")
	fs.DurationVar(&cfg.metricsInterval, "metrics-interval", 10*time.Second, "Stdout metrics export interval")
	fs.BoolVar(&cfg.concurrent, "concurrent", false, "Guard the tree with a read write lock")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if _, err := xlog.ParseLogEncoder(cfg.logEncoder); err != nil {
		return nil, err
	}
	if _, err := observability.ParseMetricsExporterType(cfg.metrics); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *config) loggerOptions() []xlog.XLoggerOption {
	enc, _ := xlog.ParseLogEncoder(cfg.logEncoder)
	opts := []xlog.XLoggerOption{
		xlog.WithXLoggerEncoder(enc),
		xlog.WithXLoggerContextFieldExtract("line", xlog.ContextKeyMapToItself),
	}
	if cfg.logLevel != "" {
		opts = append(opts, xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.logLevel)))
	}
	if cfg.logFile != "" {
		opts = append(opts, xlog.WithXLoggerFileWriter(xlog.ParseFileCoreConfig(cfg.logFile)))
	} else {
		opts = append(opts, xlog.WithXLoggerStdErrWriter())
	}
	return opts
}

func (cfg *config) metricsConfig(out io.Writer) observability.MetricsExporterConfig {
	typ, _ := observability.ParseMetricsExporterType(cfg.metrics)
	return observability.MetricsExporterConfig{
		Type:     typ,
		Interval: cfg.metricsInterval,
		// The stdout exporter must not mix with the command results.
		Writer: out,
		Addr:   cfg.metricsAddr,
	}
}
