//go:build windows

package main

import (
	"context"

	"golang.org/x/sys/windows/svc"

	"github.com/gpii/win-service/internal/eventbus"
	"github.com/gpii/win-service/internal/launcher"
	"github.com/gpii/win-service/internal/osbind"
	"github.com/gpii/win-service/internal/session"
	"github.com/gpii/win-service/internal/supervisor"
	"github.com/gpii/win-service/internal/winsvc"
	"github.com/gpii/win-service/pkg/logger"
)

// runService is the entry point the Windows service control manager invokes
// (mode=service). It blocks for the lifetime of the service.
func runService(ctx context.Context, log *logger.Logger, opts *options) error {
	lock, err := acquireInstanceLock(opts.serviceName)
	if err != nil {
		return err
	}
	defer lock.Close()

	binding := osbind.New()
	sessions := session.NewManager(log.Logger, binding, true)
	launch := launcher.New(log.Logger, binding, sessions, productName)
	bus := eventbus.New()

	sup := supervisor.New(log.Logger, binding, sessions, launch, bus, supervisor.Config{
		Command: opts.commandLine(),
		Product: productName,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := winsvc.NewHandler(log.Logger, bus, func() error {
		return sup.Run(runCtx)
	})

	return svc.Run(opts.serviceName, handler)
}
