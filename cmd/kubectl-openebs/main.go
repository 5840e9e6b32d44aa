// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package main

import (
	"fmt"
	"log"
	"os"

	gops "github.com/google/gops/agent"

	"github.com/openebs/kubectl-openebs/internal/cli/cmd"
)

func main() {
	if err := gops.Listen(gops.Options{}); err != nil {
		log.Printf("Unable to start gops: %s", err)
	}

	if err := cmd.NewDefaultOpenebsCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
