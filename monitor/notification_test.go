// Copyright (c) 2025 BVK Chaitanya

package monitor

import (
	"testing"

	"github.com/bvk/pricebot/watch"
	"github.com/stretchr/testify/require"
)

func TestNotificationString(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		symbol  string
		outcome watch.Outcome
		want    string
	}{
		{
			"XYZ",
			watch.Outcome{Kind: watch.Invalid},
			"Symbol XYZ was not found. Stopped watching it.",
		},
		{
			"BTC",
			watch.Outcome{Kind: watch.CrossedLower, Price: 9999, Bound: 10000},
			"Current price of BTC is 9999 USD, at or below the minimum 10000. Stopped watching BTC.",
		},
		{
			"ETH",
			watch.Outcome{Kind: watch.CrossedUpper, Price: 6000.125, Bound: 5000},
			"Current price of ETH is 6000.125 USD, at or above the maximum 5000. Stopped watching ETH.",
		},
		{
			"SHIB",
			watch.Outcome{Kind: watch.CrossedLower, Price: 0.00001, Bound: 0.00002},
			"Current price of SHIB is 0.00001 USD, at or below the minimum 0.00002. Stopped watching SHIB.",
		},
	}

	for _, tc := range testcases {
		n := &Notification{
			Watch:    watch.Watch{Symbol: tc.symbol},
			Outcome:  tc.outcome,
			Currency: "USD",
		}
		require.Equal(t, tc.want, n.String())
	}
}
