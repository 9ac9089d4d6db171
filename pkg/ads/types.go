// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ads defines the ad types, event taxonomy and errors shared by the
// registry, router and bridge layers.
package ads

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateIdentifier = errors.New("duplicate ad identifier")
	ErrNotFound            = errors.New("ad not found")
	ErrUnknownInstance     = errors.New("unknown ad instance")
	ErrInvalidAdType       = errors.New("invalid ad type")
	ErrInvalidIdentifier   = errors.New("invalid ad identifier")
	ErrNotInitialized      = errors.New("sdk not initialized")
	ErrHandleBound         = errors.New("handle already bound")
	ErrClosed              = errors.New("bridge closed")
)

// Identifier is the caller-supplied key addressing one ad instance
type Identifier string

// Validate rejects empty identifiers
func (id Identifier) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrInvalidIdentifier
	}
	return nil
}

// Type is the ad format of a registered instance
type Type uint8

const (
	Interstitial Type = iota + 1
	Rewarded
	Banner
)

// Types lists every ad type in lookup precedence order
var Types = []Type{Interstitial, Rewarded, Banner}

func (t Type) String() string {
	switch t {
	case Interstitial:
		return "interstitial"
	case Rewarded:
		return "rewarded"
	case Banner:
		return "banner"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Valid reports whether t is one of the known ad types
func (t Type) Valid() bool {
	return t >= Interstitial && t <= Banner
}

// ParseType parses the lower-case ad type name
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interstitial":
		return Interstitial, nil
	case "rewarded":
		return Rewarded, nil
	case "banner", "mrec":
		return Banner, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAdType, s)
}

// MarshalText implements encoding.TextMarshaler
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAdType, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BannerSize selects the banner creative format
type BannerSize string

const (
	SizeBanner      BannerSize = "BANNER"
	SizeMREC        BannerSize = "MREC"
	SizeLeaderboard BannerSize = "LEADERBOARD"
)

// ParseBannerSize normalises a size name; empty means BANNER
func ParseBannerSize(s string) (BannerSize, error) {
	switch BannerSize(strings.ToUpper(strings.TrimSpace(s))) {
	case "", SizeBanner:
		return SizeBanner, nil
	case SizeMREC:
		return SizeMREC, nil
	case SizeLeaderboard:
		return SizeLeaderboard, nil
	}
	return "", fmt.Errorf("unknown banner size %q", s)
}

// Key addresses one registry entry
type Key struct {
	Type       Type
	Identifier Identifier
}

func (k Key) String() string {
	return k.Type.String() + "/" + string(k.Identifier)
}
