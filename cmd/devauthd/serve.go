package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openharmony/security-deviceauth/config"
	"github.com/openharmony/security-deviceauth/devauth"
	"github.com/openharmony/security-deviceauth/pkg/log"
)

type serveOptions struct {
	config string
}

func commandServe() *cobra.Command {
	options := serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve [flags] [config file]",
		Short:   "Launch devauthd",
		Example: "devauthd serve config.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			options.config = args[0]

			return runServe(options)
		},
	}

	return cmd
}

const sweepInterval = 5 * time.Second

func runServe(options serveOptions) error {
	configData, err := os.ReadFile(options.config)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %v", options.config, err)
	}

	c, err := config.Load(configData)
	if err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	logger, err := newLogger(c.Logger.Level, c.Logger.Format)
	if err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}
	logger.Infof("config local udid: %s", c.LocalUDID)
	logger.Infof("config storage path: %s", c.Storage.Path)

	svc, err := devauth.Init(devauth.Options{
		LocalUDID:  c.LocalUDID,
		StorePath:  c.Storage.Path,
		QueueDepth: c.Queue.Depth,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize devauth service: %v", err)
	}

	var gr run.Group

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	gr.Add(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if expired := svc.SweepExpiredSessions(); len(expired) > 0 {
					logger.Infof("swept %d expired session(s)", len(expired))
				}
			case <-sweepCtx.Done():
				return nil
			}
		}
	}, func(err error) {
		cancelSweep()
	})

	gr.Add(func() error {
		healthy, _ := svc.Health()
		logger.Infof("devauthd ready, healthy=%v", healthy)
		<-sweepCtx.Done()
		return nil
	}, func(err error) {
		svc.Destroy()
	})

	gr.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	if err := gr.Run(); err != nil {
		if _, ok := err.(run.SignalError); !ok {
			return fmt.Errorf("run groups: %w", err)
		}
		logger.Infof("%v, shutdown now", err)
	}
	return nil
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

func newLogger(level, format string) (log.Logger, error) {
	var logLevel logrus.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = logrus.DebugLevel
	case "", "info":
		logLevel = logrus.InfoLevel
	case "warn":
		logLevel = logrus.WarnLevel
	case "error":
		logLevel = logrus.ErrorLevel
	default:
		return nil, fmt.Errorf("log level is not one of the supported values (%s): %s", strings.Join(logLevels, ", "), level)
	}

	var formatter logrus.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = &logrus.TextFormatter{DisableColors: true}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return nil, fmt.Errorf("log format is not one of the supported values (%s): %s", strings.Join(logFormats, ", "), format)
	}

	return log.NewLogrusLogger(&logrus.Logger{
		Out:       os.Stderr,
		Formatter: formatter,
		Level:     logLevel,
		Hooks:     make(logrus.LevelHooks),
	}), nil
}
