// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by [Backend.Load] when a record is absent.
var ErrRecordNotFound = errors.New("session: record not found")

// # Persistence Contract

// Backend persists the session records. Each record is stored under its own
// key and can be read or removed independently of the others.
type Backend interface {
	/*
		Load returns the raw value stored under key.

		Parameters:
		  - context: context.Context
		  - key: string (one of the constants.StorageKey* values)

		Returns:
		  - string: Stored value
		  - error: ErrRecordNotFound when absent, or storage failures
	*/
	Load(context context.Context, key string) (string, error)

	// Save stores value under key, replacing any previous value.
	Save(context context.Context, key, value string) error

	// Remove deletes the record. Removing an absent record is not an error.
	Remove(context context.Context, key string) error

	// Name identifies the backend in logs.
	Name() string
}
