package auth

import (
	"time"

	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/config"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		Headless:          true,
		SettleDelay:       10 * time.Millisecond,
		SubmitWait:        10 * time.Millisecond,
		ChallengeInterval: 10 * time.Millisecond,
		ChallengeTimeout:  100 * time.Millisecond,
	}
}
