// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"sync"
)

// logBufferSize is the number of messages that can wait for the printer
// before new ones are dropped.
const logBufferSize = 256

// KeyMessage is the key under which the message text is stored.
const KeyMessage = "message"

// LogSink is an interface that can be implemented to provide a custom sink
// for the monitor's logs.
type LogSink interface {
	// Info logs a non-error message with the given key/value pairs. The
	// level argument is 0 for InfoLevel and grows with verbosity.
	Info(level int, msg string, keysAndValues ...interface{})
}

type job struct {
	level         Level
	component     Component
	msg           string
	keysAndValues []interface{}
}

// Logger prints component messages asynchronously to a LogSink. A nil
// *Logger is valid and logs nothing.
type Logger struct {
	ComponentLevels map[Component]Level
	Sink            LogSink

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// New will construct a new logger with the given LogSink. If the given
// LogSink is nil, then the logger will log to logrus' standard logger.
//
// The "componentLevels" parameter is variadic with the latest value taking
// precedence. Levels from the environment have the lowest precedence.
func New(sink LogSink, componentLevels ...map[Component]Level) *Logger {
	levels := append([]map[Component]Level{getEnvComponentLevels()}, componentLevels...)

	logger := &Logger{
		ComponentLevels: mergeComponentLevels(levels...),
		Sink:            sink,
		jobs:            make(chan job, logBufferSize),
		done:            make(chan struct{}),
	}
	if logger.Sink == nil {
		logger.Sink = NewLogrusSink(nil)
	}

	go logger.startPrinter()

	return logger
}

// Close stops the printer goroutine after the buffered messages have been
// written. It is safe to call Close more than once.
func (logger *Logger) Close() {
	if logger == nil {
		return
	}

	logger.mu.Lock()
	if !logger.closed {
		logger.closed = true
		close(logger.jobs)
	}
	logger.mu.Unlock()

	<-logger.done
}

// Is will return true if the given Level is enabled for the given Component.
func (logger *Logger) Is(level Level, component Component) bool {
	if logger == nil || level == OffLevel {
		return false
	}
	return logger.ComponentLevels[component] >= level
}

// Print queues a message for the sink. The message is dropped when the
// level is disabled for the component, the buffer is full or the logger is
// closed.
func (logger *Logger) Print(level Level, component Component, msg string, keysAndValues ...interface{}) {
	if !logger.Is(level, component) {
		return
	}

	logger.mu.RLock()
	defer logger.mu.RUnlock()

	if logger.closed {
		return
	}

	select {
	case logger.jobs <- job{level: level, component: component, msg: msg, keysAndValues: keysAndValues}:
	default:
	}
}

func (logger *Logger) startPrinter() {
	defer close(logger.done)

	for j := range logger.jobs {
		kv := make([]interface{}, 0, len(j.keysAndValues)+2)
		kv = append(kv, "component", j.component.String())
		kv = append(kv, j.keysAndValues...)

		logger.Sink.Info(int(j.level)-DiffToInfo, j.msg, kv...)
	}
}
