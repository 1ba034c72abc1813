/*
Copyright 2025 The llm-d Authors

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

// Package logging configures the structured logger shared by the allocator.
//
// Code logs through logr, obtained with ctrl.LoggerFrom(ctx) or ctrl.Log, and
// uses the verbosity constants below for anything noisier than Info:
//
//	logger.V(logging.DEBUG).Info("Built feasibility model", "variables", n)
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/onsi/ginkgo/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
)

// Verbosity levels passed to logr's V().
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

// ParseLevel maps a level name to a logr verbosity.
func ParseLevel(level string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return INFO, nil
	case "debug":
		return DEBUG, nil
	case "trace":
		return TRACE, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger builds a zap-backed logr.Logger that writes to w and enables
// every V() level up to verbosity.
func NewLogger(w io.Writer, verbosity int, development bool) logr.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	// logr V(n) is emitted at zap level -n
	level := zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)

	opts := []zap.Option{zap.AddCaller()}
	if development {
		opts = append(opts, zap.Development())
	}
	return zapr.NewLogger(zap.New(core, opts...))
}

// Setup installs a logger for the given level name as the process-wide
// controller-runtime logger and returns it.
func Setup(w io.Writer, level string, development bool) (logr.Logger, error) {
	verbosity, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}
	logger := NewLogger(w, verbosity, development)
	ctrl.SetLogger(logger)
	return logger, nil
}

// NewTestLogger installs a development logger writing to the Ginkgo output
// so suite logs are only shown for failing specs.
func NewTestLogger() logr.Logger {
	logger := NewLogger(ginkgo.GinkgoWriter, TRACE, true)
	ctrl.SetLogger(logger)
	return logger
}
