//go:build !windows

package main

import (
	"errors"

	"github.com/gpii/win-service/pkg/logger"
)

func runInstall(log *logger.Logger, opts *options) error {
	return errors.New("gpii-service: --mode=install requires Windows")
}

func runUninstall(log *logger.Logger, opts *options) error {
	return errors.New("gpii-service: --mode=uninstall requires Windows")
}
