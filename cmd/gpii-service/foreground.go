package main

import (
	"context"

	"github.com/gpii/win-service/internal/eventbus"
	"github.com/gpii/win-service/internal/launcher"
	"github.com/gpii/win-service/internal/osbind"
	"github.com/gpii/win-service/internal/session"
	"github.com/gpii/win-service/internal/supervisor"
	"github.com/gpii/win-service/pkg/logger"
)

const productName = "gpii"

// runForeground runs the supervisor directly under the current process's
// own token, without going through the Windows service control manager.
// Used for local development (mode unset).
func runForeground(ctx context.Context, log *logger.Logger, opts *options) error {
	lock, err := acquireInstanceLock(opts.serviceName)
	if err != nil {
		return err
	}
	defer lock.Close()

	binding := osbind.New()
	sessions := session.NewManager(log.Logger, binding, false)
	launch := launcher.New(log.Logger, binding, sessions, productName)
	bus := eventbus.New()

	sup := supervisor.New(log.Logger, binding, sessions, launch, bus, supervisor.Config{
		Command: opts.commandLine(),
		Product: productName,
	})

	return sup.Run(ctx)
}
