// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the lifecycle stage reported by a native callback
type EventKind uint8

const (
	Loaded EventKind = iota + 1
	FailedToLoad
	Shown
	FailedToShow
	Clicked
	Hidden
	Impression
	RevenuePaid
	Expanded
	Collapsed
	Opened
	RewardEarned
)

var kindNames = map[EventKind]string{
	Loaded:       "Loaded",
	FailedToLoad: "FailedToLoad",
	Shown:        "Shown",
	FailedToShow: "FailedToShow",
	Clicked:      "Clicked",
	Hidden:       "Hidden",
	Impression:   "Impression",
	RevenuePaid:  "RevenuePaid",
	Expanded:     "Expanded",
	Collapsed:    "Collapsed",
	Opened:       "Opened",
	RewardEarned: "RewardEarned",
}

// Kinds lists every event kind in declaration order
var Kinds = []EventKind{
	Loaded, FailedToLoad, Shown, FailedToShow, Clicked, Hidden,
	Impression, RevenuePaid, Expanded, Collapsed, Opened, RewardEarned,
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseEventKind is the inverse of String
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

func (k EventKind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown event kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Name returns the JavaScript event name for kind k on ad type t,
// e.g. onInterstitialLoaded, onRewardedClosed, onRewardEarned.
func Name(t Type, k EventKind) string {
	if k == RewardEarned {
		return "onRewardEarned"
	}

	prefix := "on" + strings.ToUpper(t.String()[:1]) + t.String()[1:]
	if k == Hidden && t != Banner {
		return prefix + "Closed"
	}
	return prefix + k.String()
}

// AdInfo describes the creative that was served
type AdInfo struct {
	PlacementName       string          `json:"placementName,omitempty"`
	PlacementID         string          `json:"placementId,omitempty"`
	Bidder              string          `json:"bidder,omitempty"`
	ExternalPlacementID string          `json:"externalPlacementId,omitempty"`
	Revenue             decimal.Decimal `json:"revenue"`
}

// ErrorInfo carries a native SDK failure
type ErrorInfo struct {
	Code    string `json:"errorCode"`
	Message string `json:"error"`
}

func (e *ErrorInfo) Error() string {
	return e.Code + ": " + e.Message
}

// Event is one routed native callback
type Event struct {
	Seq        uint64     `json:"seq"`
	Type       Type       `json:"type"`
	Identifier Identifier `json:"adId"`
	Kind       EventKind  `json:"kind"`
	Ad         *AdInfo    `json:"ad,omitempty"`
	Error      *ErrorInfo `json:"error,omitempty"`
	Time       time.Time  `json:"time"`
}

// Name returns the JavaScript event name of e
func (e Event) Name() string {
	return Name(e.Type, e.Kind)
}

type eventJSON struct {
	Event      string     `json:"event"`
	Seq        uint64     `json:"seq"`
	Type       Type       `json:"type"`
	Identifier Identifier `json:"adId"`
	Kind       EventKind  `json:"kind"`
	Ad         *AdInfo    `json:"ad,omitempty"`
	Error      *ErrorInfo `json:"error,omitempty"`
	Time       time.Time  `json:"time"`
}

// MarshalJSON adds the JavaScript event name next to the fields
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Event:      e.Name(),
		Seq:        e.Seq,
		Type:       e.Type,
		Identifier: e.Identifier,
		Kind:       e.Kind,
		Ad:         e.Ad,
		Error:      e.Error,
		Time:       e.Time,
	})
}

// UnmarshalJSON ignores the derived event name
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Event{
		Seq:        raw.Seq,
		Type:       raw.Type,
		Identifier: raw.Identifier,
		Kind:       raw.Kind,
		Ad:         raw.Ad,
		Error:      raw.Error,
		Time:       raw.Time,
	}
	return nil
}
