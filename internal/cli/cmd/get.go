// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/openebs/kubectl-openebs/upgrade"
)

func newCmdGet() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Display OpenEBS resources",
		Long:  ``,
	}

	cmd.AddCommand(newCmdGetUpgradeStatus())

	return cmd
}

func newCmdGetUpgradeStatus() *cobra.Command {
	var params = upgrade.Parameters{}

	cmd := &cobra.Command{
		Use:   "upgrade-status",
		Short: "Display the status of the last upgrade",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			klog.SetOutput(io.Discard)

			return runInterruptible(cmd.Context(), upgrade.NewK8sUpgrader(k8sClient, upgradeParameters(params, cmd.OutOrStdout())).Status)
		},
	}

	cmd.Flags().StringVar(&params.ReleaseName, "release-name", "", "Name of the helm release, discovered when empty")

	return cmd
}
