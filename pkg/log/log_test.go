// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	require.Equal(zapcore.DebugLevel, ParseLevel("debug"))
	require.Equal(zapcore.WarnLevel, ParseLevel("warn"))
	require.Equal(zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestFromZapWith(t *testing.T) {
	require := require.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With(String("component", "router"))

	logger.Debug("event dropped", Error(errors.New("unknown instance")), Uint64("handle", 7))

	entries := logs.All()
	require.Len(entries, 1)
	require.Equal("event dropped", entries[0].Message)

	ctx := entries[0].ContextMap()
	require.Equal("router", ctx["component"])
	require.Equal(uint64(7), ctx["handle"])
}

func TestNoOp(t *testing.T) {
	logger := NoOp()
	logger.Info("ignored")
	require.NoError(t, logger.With(Int("n", 1)).Sync())
}
