// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package log

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type wrap struct {
	l  *logrus.Logger
	mu sync.Mutex
}

// singleton shared by every component
var w = &wrap{
	l: logrus.StandardLogger(),
}

// SetOutput sets the standard logger output.
func SetOutput(out io.Writer) {
	w.l.SetOutput(out)
}

// SetFormatter sets the standard logger formatter.
func SetFormatter(formatter logrus.Formatter) {
	w.l.SetFormatter(formatter)
}

// AddHook adds a hook to the standard logger.
func AddHook(hook logrus.Hook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.l.Hooks.Add(hook)
}

// SetLevel sets the standard logger level.
func SetLevel(level logrus.Level) {
	w.l.SetLevel(level)
}

// GetLevel returns the standard logger level.
func GetLevel() logrus.Level {
	return w.l.GetLevel()
}

// IsLevelEnabled checks if the standard logger logs at the given level.
func IsLevelEnabled(level logrus.Level) bool {
	return w.l.IsLevelEnabled(level)
}

// Configure applies a level name ("debug", "info"...) and the text/json format.
// Unknown levels fall back to info.
func Configure(level string, json bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	SetLevel(lvl)

	if json {
		SetFormatter(&logrus.JSONFormatter{})
	} else {
		SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if err != nil && level != "" {
		WithField("level", level).Warn("unknown log level, using info")
	}
}

func Debug(args ...interface{}) {
	w.l.Debug(args...)
}

func Info(args ...interface{}) {
	w.l.Info(args...)
}

func Warn(args ...interface{}) {
	w.l.Warn(args...)
}

func Error(args ...interface{}) {
	w.l.Error(args...)
}

func Debugf(format string, args ...interface{}) {
	w.l.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	w.l.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	w.l.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	w.l.Errorf(format, args...)
}
