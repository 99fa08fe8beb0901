//go:build windows

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows/svc/mgr"

	"github.com/gpii/win-service/pkg/logger"
)

// runInstall registers the service with the SCM, configured to run this
// same executable with --mode=service plus the install-time arguments
// baked in as service start parameters.
func runInstall(log *logger.Logger, opts *options) error {
	if opts.gpiiPath == "" {
		return fmt.Errorf("--mode=install requires --gpii")
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve host executable: %w", err)
	}

	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service control manager: %w", err)
	}
	defer m.Disconnect()

	if existing, err := m.OpenService(opts.serviceName); err == nil {
		existing.Close()
		return fmt.Errorf("service %q is already installed", opts.serviceName)
	}

	args := []string{"--mode=service", "--gpii", opts.gpiiPath}
	for _, a := range opts.programArgs {
		args = append(args, "--programArgs", a)
	}
	for _, a := range opts.nodeArgs {
		args = append(args, "--nodeArgs", a)
	}

	s, err := m.CreateService(opts.serviceName, exe, mgr.Config{
		DisplayName: "GPII Service",
		Description: "Supervises the GPII user-mode process across Windows sessions.",
		StartType:   mgr.StartAutomatic,
	}, args...)
	if err != nil {
		return fmt.Errorf("create service %q: %w", opts.serviceName, err)
	}
	defer s.Close()

	log.Info("service installed", "name", opts.serviceName)
	return nil
}

// runUninstall removes a previously installed service.
func runUninstall(log *logger.Logger, opts *options) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service control manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(opts.serviceName)
	if err != nil {
		return fmt.Errorf("open service %q: %w", opts.serviceName, err)
	}
	defer s.Close()

	if err := s.Delete(); err != nil {
		return fmt.Errorf("delete service %q: %w", opts.serviceName, err)
	}

	log.Info("service uninstalled", "name", opts.serviceName)
	return nil
}
