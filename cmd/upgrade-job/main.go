// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package main

import (
	"fmt"
	"os"

	gops "github.com/google/gops/agent"

	"github.com/openebs/kubectl-openebs/internal/cli/cmd"
	"github.com/openebs/kubectl-openebs/logging"
)

func main() {
	if err := gops.Listen(gops.Options{}); err != nil {
		logging.DefaultLogger.WithError(err).Warn("Unable to start gops")
	}

	if err := cmd.NewUpgradeJobCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
