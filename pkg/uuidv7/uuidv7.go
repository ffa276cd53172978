// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuidv7 generates the correlation IDs carried in X-Request-ID.
//
// Version 7 values sort by creation time, so request logs read in order when
// sorted by ID.
package uuidv7

import "github.com/google/uuid"

// New returns a UUIDv7 string, or a random v4 when the clock-based generator fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
