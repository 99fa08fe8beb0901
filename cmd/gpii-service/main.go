/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"context"
	"os"

	"github.com/gpii/win-service/pkg/logger"
	"github.com/gpii/win-service/pkg/osutil"
	"github.com/gpii/win-service/pkg/resiliency"
)

const (
	errCommandError = 1
	errPanic        = 2
)

func main() {
	log := logger.New("gpii-service")

	defer func() {
		panicErr := resiliency.MakePanicError(recover(), log.Logger)
		if panicErr != nil {
			os.Stderr.WriteString(panicErr.Error() + string(osutil.LineSep()))
			log.Flush()
			os.Exit(errPanic)
		}
	}()

	root := newRootCmd(log)

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Error(err, "command failed")
		log.Flush()
		os.Exit(errCommandError)
	}

	log.Flush()
}
