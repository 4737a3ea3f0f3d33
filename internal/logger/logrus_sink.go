// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"github.com/sirupsen/logrus"
)

// LogrusSink forwards messages to a logrus logger, with the key/value pairs
// as fields. It is the default sink.
type LogrusSink struct {
	log *logrus.Logger
}

var _ LogSink = &LogrusSink{}

// NewLogrusSink creates a sink for l. A nil l uses logrus' standard logger.
func NewLogrusSink(l *logrus.Logger) *LogrusSink {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusSink{log: l}
}

// Info logs msg at logrus' info level for level 0 and at debug level above
// that.
func (s *LogrusSink) Info(level int, msg string, keysAndValues ...interface{}) {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[keyString(keysAndValues[i])] = keysAndValues[i+1]
	}

	entry := s.log.WithFields(fields)
	if level > 0 {
		entry.Debug(msg)
		return
	}
	entry.Info(msg)
}
