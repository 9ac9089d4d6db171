// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEventNames(t *testing.T) {
	tests := []struct {
		adType Type
		kind   EventKind
		want   string
	}{
		{Interstitial, Loaded, "onInterstitialLoaded"},
		{Interstitial, Hidden, "onInterstitialClosed"},
		{Rewarded, FailedToShow, "onRewardedFailedToShow"},
		{Rewarded, Hidden, "onRewardedClosed"},
		{Rewarded, RewardEarned, "onRewardEarned"},
		{Banner, Hidden, "onBannerHidden"},
		{Banner, RevenuePaid, "onBannerRevenuePaid"},
		{Banner, Expanded, "onBannerExpanded"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, Name(tt.adType, tt.kind))
		})
	}
}

func TestParseType(t *testing.T) {
	require := require.New(t)

	typ, err := ParseType("Rewarded")
	require.NoError(err)
	require.Equal(Rewarded, typ)

	typ, err = ParseType("mrec")
	require.NoError(err)
	require.Equal(Banner, typ)

	_, err = ParseType("native")
	require.True(errors.Is(err, ErrInvalidAdType))
}

func TestParseBannerSize(t *testing.T) {
	require := require.New(t)

	size, err := ParseBannerSize("")
	require.NoError(err)
	require.Equal(SizeBanner, size)

	size, err = ParseBannerSize("mrec")
	require.NoError(err)
	require.Equal(SizeMREC, size)

	_, err = ParseBannerSize("skyscraper")
	require.Error(err)
}

func TestIdentifierValidate(t *testing.T) {
	require.ErrorIs(t, Identifier("  ").Validate(), ErrInvalidIdentifier)
	require.NoError(t, Identifier("intA").Validate())
}

func TestEventJSON(t *testing.T) {
	require := require.New(t)

	ev := Event{
		Seq:        3,
		Type:       Rewarded,
		Identifier: "rw1",
		Kind:       RevenuePaid,
		Ad: &AdInfo{
			PlacementName: "level_end",
			Bidder:        "meta",
			Revenue:       decimal.RequireFromString("0.0125"),
		},
		Time: time.Unix(1700000000, 0).UTC(),
	}

	b, err := json.Marshal(ev)
	require.NoError(err)

	var fields map[string]any
	require.NoError(json.Unmarshal(b, &fields))
	require.Equal("onRewardedRevenuePaid", fields["event"])
	require.Equal("rewarded", fields["type"])
	require.Equal("RevenuePaid", fields["kind"])
	require.Equal("rw1", fields["adId"])

	var decoded Event
	require.NoError(json.Unmarshal(b, &decoded))
	require.Equal(ev.Kind, decoded.Kind)
	require.Equal(ev.Type, decoded.Type)
	require.True(ev.Ad.Revenue.Equal(decoded.Ad.Revenue))
}
