//go:build !windows

package main

import (
	"context"
	"errors"

	"github.com/gpii/win-service/pkg/logger"
)

func runService(ctx context.Context, log *logger.Logger, opts *options) error {
	return errors.New("gpii-service: --mode=service requires Windows")
}
