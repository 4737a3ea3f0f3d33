// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import "os"

// Component is an enumeration representing the "components" which can be
// logged against. A Level can be configured on a per-component basis.
type Component int

const (
	// ComponentAll enables logging for all components.
	ComponentAll Component = iota

	// ComponentTopology enables replica set topology logging: scans,
	// membership changes and primary elections.
	ComponentTopology

	// ComponentServerSelection enables host selection logging.
	ComponentServerSelection

	// ComponentConnection enables logging of connections to set members.
	ComponentConnection
)

// ComponentLiteral is the name of a component in log output.
type ComponentLiteral string

const (
	ComponentLiteralAll             ComponentLiteral = "all"
	ComponentLiteralTopology        ComponentLiteral = "topology"
	ComponentLiteralServerSelection ComponentLiteral = "serverselection"
	ComponentLiteralConnection      ComponentLiteral = "connection"
)

func (c Component) String() string {
	switch c {
	case ComponentTopology:
		return string(ComponentLiteralTopology)
	case ComponentServerSelection:
		return string(ComponentLiteralServerSelection)
	case ComponentConnection:
		return string(ComponentLiteralConnection)
	default:
		return string(ComponentLiteralAll)
	}
}

// componentEnvVar is an enumeration representing the environment variables
// which can be used to configure a component's log level.
type componentEnvVar string

const (
	componentEnvVarAll             componentEnvVar = "MONGODB_LOG_ALL"
	componentEnvVarTopology        componentEnvVar = "MONGODB_LOG_TOPOLOGY"
	componentEnvVarServerSelection componentEnvVar = "MONGODB_LOG_SERVER_SELECTION"
	componentEnvVarConnection      componentEnvVar = "MONGODB_LOG_CONNECTION"
)

var componentEnvVars = map[componentEnvVar]Component{
	componentEnvVarTopology:        ComponentTopology,
	componentEnvVarServerSelection: ComponentServerSelection,
	componentEnvVarConnection:      ComponentConnection,
}

// getEnvComponentLevels returns the component levels set in the
// environment. MONGODB_LOG_ALL applies to every component that is not set
// explicitly.
func getEnvComponentLevels() map[Component]Level {
	levels := make(map[Component]Level)

	all := parseLevel(os.Getenv(string(componentEnvVarAll)))
	for env, component := range componentEnvVars {
		level := parseLevel(os.Getenv(string(env)))
		if level == OffLevel {
			level = all
		}
		if level != OffLevel {
			levels[component] = level
		}
	}

	return levels
}

// mergeComponentLevels merges the given maps, later maps taking precedence.
// A ComponentAll entry expands to every component.
func mergeComponentLevels(componentLevels ...map[Component]Level) map[Component]Level {
	merged := make(map[Component]Level)
	for _, levels := range componentLevels {
		if all, ok := levels[ComponentAll]; ok {
			for _, component := range componentEnvVars {
				merged[component] = all
			}
		}
		for component, level := range levels {
			if component == ComponentAll {
				continue
			}
			merged[component] = level
		}
	}
	return merged
}
