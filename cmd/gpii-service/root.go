/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gpii/win-service/pkg/logger"
)

const defaultServiceName = "gpii-service"

// options collects the flags every --mode shares or partially shares, per
// the CLI surface's flat-flag-set shape (no separate subcommands, a single
// --mode selector).
type options struct {
	mode        string
	serviceName string
	gpiiPath    string
	programArgs []string
	nodeArgs    []string
}

func newRootCmd(log *logger.Logger) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "gpii-service",
		Short:         "Supervises the GPII user-mode process across Windows sessions",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, log, opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.mode, "mode", "", `one of "install", "uninstall", "service", or unset to run in the foreground`)
	flags.StringVar(&opts.serviceName, "serviceName", defaultServiceName, "Windows service name")
	flags.StringVar(&opts.gpiiPath, "gpii", "", "path to the user-mode application (required for --mode=install)")
	flags.StringSliceVar(&opts.programArgs, "programArgs", nil, "comma-separated arguments appended to the host command line")
	flags.StringSliceVar(&opts.nodeArgs, "nodeArgs", nil, "comma-separated arguments for the host runtime")

	log.AddLevelFlag(flags)

	return root
}

func dispatch(cmd *cobra.Command, log *logger.Logger, opts *options) error {
	switch strings.ToLower(opts.mode) {
	case "install":
		return runInstall(log, opts)
	case "uninstall":
		return runUninstall(log, opts)
	case "service":
		return runService(cmd.Context(), log, opts)
	case "":
		return runForeground(cmd.Context(), log, opts)
	default:
		return fmt.Errorf("unrecognized --mode %q", opts.mode)
	}
}

// commandLine builds the command line a spawned child is started with:
// the configured gpii path plus --programArgs, followed by --nodeArgs for
// the host runtime. Returns "" when no --gpii path was configured, so the
// launcher synthesizes its own default command line instead of spawning a
// bare quoted-empty-string executable.
func (o *options) commandLine() string {
	if o.gpiiPath == "" {
		return ""
	}
	parts := []string{fmt.Sprintf("%q", o.gpiiPath)}
	parts = append(parts, o.programArgs...)
	parts = append(parts, o.nodeArgs...)
	return strings.Join(parts, " ")
}
