// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package conn

import (
	"fmt"

	"github.com/ikmak/rsmonitor/model"
)

// ConnectionError represents a failure to reach a host or to run a command
// on it.
type ConnectionError struct {
	Addr    model.Addr
	Wrapped error

	// init is true if this error occurred while establishing the connection.
	init    bool
	message string
}

// Error implements the error interface.
func (e ConnectionError) Error() string {
	message := e.message
	if e.init {
		fullMsg := "error occurred during connection handshake"
		if message != "" {
			fullMsg = fmt.Sprintf("%s: %s", fullMsg, message)
		}
		message = fullMsg
	}
	if e.Wrapped != nil && message != "" {
		return fmt.Sprintf("connection(%s) %s: %s", e.Addr, message, e.Wrapped.Error())
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("connection(%s) %s", e.Addr, e.Wrapped.Error())
	}
	return fmt.Sprintf("connection(%s) %s", e.Addr, message)
}

// Unwrap returns the underlying error.
func (e ConnectionError) Unwrap() error {
	return e.Wrapped
}

// NewDialError wraps an error returned while dialing addr.
func NewDialError(addr model.Addr, err error) error {
	return ConnectionError{Addr: addr, Wrapped: err, init: true}
}
