// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"fmt"
	"io"
	"log"

	"go.mongodb.org/mongo-driver/bson"
)

// IOSink writes to an io.Writer using the standard library logging solution,
// one extended JSON document per message.
type IOSink struct {
	log *log.Logger
}

// Compile-time check to ensure IOSink implements the LogSink interface.
var _ LogSink = &IOSink{}

// NewIOSink will create a new IOSink that writes to the provided io.Writer.
func NewIOSink(out io.Writer) *IOSink {
	return &IOSink{
		log: log.New(out, "", log.LstdFlags),
	}
}

// Info will write the provided message and key-value pairs to the io.Writer
// as extended JSON.
func (osSink *IOSink) Info(_ int, msg string, keysAndValues ...interface{}) {
	kv := bson.D{{Key: KeyMessage, Value: msg}}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		kv = append(kv, bson.E{Key: keyString(keysAndValues[i]), Value: keysAndValues[i+1]})
	}

	kvBytes, err := bson.MarshalExtJSON(kv, false, false)
	if err != nil {
		osSink.log.Printf("%s %v", msg, keysAndValues)
		return
	}

	osSink.log.Println(string(kvBytes))
}

func keyString(key interface{}) string {
	if s, ok := key.(string); ok {
		return s
	}
	return fmt.Sprint(key)
}
