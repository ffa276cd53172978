// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package query builds normalized URL query parameters.

Two filter sets that differ only by empty values, surrounding whitespace or
Unicode composition produce the same [url.Values] and the same canonical key.
*/
package query

import (
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Params collects filter parameters, dropping undefined and empty values.
type Params struct {
	values url.Values
}

// New returns an empty Params.
func New() *Params {
	return &Params{values: url.Values{}}
}

// Set records key=value when value is non-empty after normalization.
func (p *Params) Set(key, value string) *Params {
	clean := Normalize(value)
	if clean == "" {
		p.values.Del(key)
		return p
	}
	p.values.Set(key, clean)
	return p
}

// SetList records a comma-separated list, dropping blank members.
func (p *Params) SetList(key, raw string) *Params {
	return p.Set(key, strings.Join(StringSlice(Normalize(raw)), ","))
}

// Values returns a copy of the collected parameters.
func (p *Params) Values() url.Values {
	out := make(url.Values, len(p.values))
	for key, vals := range p.values {
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// Canonical returns the key-sorted encoding of the parameters.
// An empty set encodes as "".
func (p *Params) Canonical() string {
	return p.values.Encode()
}

// Normalize trims whitespace and converts the value to Unicode NFC.
func Normalize(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

// StringSlice parses a single comma-separated query string
// into a trimmed slice of strings.
func StringSlice(val string) []string {
	if val == "" {
		return nil
	}
	var res []string
	for _, v := range strings.Split(val, ",") {
		clean := strings.TrimSpace(v)
		if clean != "" {
			res = append(res, clean)
		}
	}
	return res
}
