// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		URI:               "bolt://localhost:7687",
		Username:          "neo4j",
		Password:          "secret",
		ConnectionTimeout: 30 * time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing URI", func(c *Config) { c.URI = "" }, true},
		{"missing username", func(c *Config) { c.Username = "" }, true},
		{"missing password", func(c *Config) { c.Password = "" }, true},
		{"zero timeout", func(c *Config) { c.ConnectionTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Run("error string includes kind and message", func(t *testing.T) {
		err := &StoreError{Kind: KindSyntax, Message: "bad query"}
		if got := err.Error(); got == "" {
			t.Error("Error() returned empty string")
		}
	})

	t.Run("unwrap exposes the cause", func(t *testing.T) {
		cause := errors.New("root cause")
		err := &StoreError{Kind: KindInternal, Message: "wrapper", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("errors.Is could not find the wrapped cause")
		}
	})
}

func TestErrorKindString(t *testing.T) {
	kinds := map[ErrorKind]string{
		KindSyntax:     "syntax",
		KindTimeout:    "timeout",
		KindConnection: "connection",
		KindInternal:   "internal",
	}
	for kind, want := range kinds {
		if kind.String() != want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
