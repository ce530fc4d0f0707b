/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the process logger and carries the few helpers
// logr does not provide.
package logging

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SeverityKey marks log lines with a severity logr has no level for.
const SeverityKey = "severity"

// SeverityWarning is the SeverityKey value for warnings.
const SeverityWarning = "warning"

// Options configures the process logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// New builds a zap-backed logr.Logger writing to stderr. Lines logged with
// Warn are written at zap's warn level.
func New(opts Options) (logr.Logger, error) {
	return newLogger(opts, zapcore.Lock(os.Stderr))
}

func newLogger(opts Options, out zapcore.WriteSyncer) (logr.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(opts.Level)
		if err != nil {
			return logr.Discard(), fmt.Errorf("parsing log level: %w", err)
		}
	}

	var (
		enc     zapcore.Encoder
		zapOpts = []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	)
	switch opts.Format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console":
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		zapOpts = append(zapOpts, zap.Development())
	default:
		return logr.Discard(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	// Info entries must reach the core even at warn so tagged warnings can be
	// promoted; severityCore applies the configured level after that.
	coreLevel := min(level, zapcore.InfoLevel)
	core := &severityCore{
		Core:  zapcore.NewCore(enc, out, coreLevel),
		level: level,
	}
	return zapr.NewLogger(zap.New(core, zapOpts...)), nil
}

// severityCore raises entries tagged SeverityKey=SeverityWarning to
// zapcore.WarnLevel and drops entries below level.
type severityCore struct {
	zapcore.Core
	level zapcore.Level
}

func (c *severityCore) With(fields []zapcore.Field) zapcore.Core {
	return &severityCore{Core: c.Core.With(fields), level: c.level}
}

func (c *severityCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *severityCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if ent.Level < zapcore.WarnLevel && isWarning(fields) {
		ent.Level = zapcore.WarnLevel
	}
	if ent.Level < c.level {
		return nil
	}
	return c.Core.Write(ent, fields)
}

func isWarning(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == SeverityKey && f.Type == zapcore.StringType && f.String == SeverityWarning {
			return true
		}
	}
	return false
}

// Warn logs msg at info verbosity tagged as a warning.
func Warn(log logr.Logger, msg string, keysAndValues ...any) {
	log.Info(msg, append(keysAndValues, SeverityKey, SeverityWarning)...)
}
