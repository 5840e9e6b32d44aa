// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openebs/kubectl-openebs/defaults"
)

func newCmdVersion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the plugin version",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := defaults.Version
			if v == "" {
				v = defaults.UpgradeJobImageTag
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Kubectl Plugin (kubectl-openebs) revision %s\n", v)
			return nil
		},
	}
	return cmd
}
