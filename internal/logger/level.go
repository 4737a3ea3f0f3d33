// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"strings"
)

// DiffToInfo is the number of levels that come before the "Info" level.
// This ensures that "Info" is the 0th level passed to the sink.
const DiffToInfo = 1

// Level is an enumeration representing the supported log severity levels.
type Level int

const (
	// OffLevel supresses logging.
	OffLevel Level = iota

	// InfoLevel enables logging of informational messages, e.g. a primary
	// change or a member going down.
	InfoLevel

	// DebugLevel enables logging of debug messages. These logs can be
	// voluminous, e.g. every isMaster reply.
	DebugLevel
)

// LevelLiteral are the logging levels read from environment variables and
// configuration files. See LevelLiteral.Level for the mapping.
type LevelLiteral string

const (
	OffLevelLiteral       LevelLiteral = "off"
	EmergencyLevelLiteral LevelLiteral = "emergency"
	AlertLevelLiteral     LevelLiteral = "alert"
	CriticalLevelLiteral  LevelLiteral = "critical"
	ErrorLevelLiteral     LevelLiteral = "error"
	WarnLevelLiteral      LevelLiteral = "warn"
	NoticeLevelLiteral    LevelLiteral = "notice"
	InfoLevelLiteral      LevelLiteral = "info"
	DebugLevelLiteral     LevelLiteral = "debug"
	TraceLevelLiteral     LevelLiteral = "trace"
)

// Level will return the Level associated with the level literal. If the
// literal is not a valid level, then OffLevel is returned.
func (llevel LevelLiteral) Level() Level {
	switch llevel {
	case EmergencyLevelLiteral, AlertLevelLiteral, CriticalLevelLiteral,
		ErrorLevelLiteral, WarnLevelLiteral, NoticeLevelLiteral, InfoLevelLiteral:
		return InfoLevel
	case DebugLevelLiteral, TraceLevelLiteral:
		return DebugLevel
	default:
		return OffLevel
	}
}

// ParseLevel converts a level name, case-insensitively, to a Level. Unknown
// names map to OffLevel.
func ParseLevel(level string) Level {
	return parseLevel(level)
}

func parseLevel(level string) Level {
	return LevelLiteral(strings.ToLower(strings.TrimSpace(level))).Level()
}
