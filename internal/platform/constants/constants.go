// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire client.

Categories:

  - Metadata: Application name and version reported in the User-Agent.
  - Storage Keys: Names of the three persisted session records.
  - API Paths: Endpoints of the remote task service, relative to the base URL.
  - Cache Kinds: Entity kinds used to build cache keys.
  - Status Server: Listen address and timeouts of the local status endpoint.

Using this package ensures Magic Strings are eliminated from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "taskdeck"
	AppVersion = "0.1.0-dev"

	// UserAgent is sent with every outbound request.
	UserAgent = AppName + "/" + AppVersion
)

// # Session Storage Keys

// Each record is independently readable and removable. Absence of any one of
// them means the session is not authenticated.
const (
	StorageKeyAccessToken  = "accessToken"
	StorageKeyRefreshToken = "refreshToken"
	StorageKeyUser         = "user"

	// RedisPrefixSession namespaces the session records in a shared Redis.
	RedisPrefixSession = "taskdeck:session:"
)

// # API Paths

const (
	PathLogin       = "auth/login/"
	PathRegister    = "auth/register/"
	PathLogout      = "auth/logout/"
	PathProfile     = "users/me/"
	PathUsers       = "users/"
	PathUserOptions = "users/options/"
	PathTasks       = "tasks/"
)

// # Request Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderUserAgent     = "User-Agent"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"

	ContentTypeJSON = "application/json"
)

// # Cache Kinds

const (
	KindTasks = "tasks"
	KindTask  = "task"
	KindUsers = "users"
)

// # Status Server

const (
	// DefaultStatusAddr is where `taskctl serve` listens when no address is given.
	DefaultStatusAddr = "127.0.0.1:9464"

	StatusReadHeaderTimeout = 5 * time.Second
	StatusWriteTimeout      = 15 * time.Second
	StatusShutdownTimeout   = 10 * time.Second
)
