// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/openebs/kubectl-openebs/localpv"
)

type localpvGetter func(ctx context.Context, client localpv.Client, p localpv.Parameters) error

// newCmdLocalPVGet returns a "get <what>" command printing a localpv listing.
func newCmdLocalPVGet(use, short string, get localpvGetter, withNode bool) *cobra.Command {
	var params = localpv.Parameters{}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			klog.SetOutput(io.Discard)

			params.Namespace = namespace
			params.Writer = cmd.OutOrStdout()
			return runInterruptible(cmd.Context(), func(ctx context.Context) error {
				return get(ctx, k8sClient, params)
			})
		},
	}
	if withNode {
		cmd.Flags().StringVar(&params.Node, "node", "", "Only list volumes of this node")
	}

	return cmd
}

func newCmdLocalPVEngine(use, short string, subcommands ...*cobra.Command) *cobra.Command {
	get := &cobra.Command{
		Use:   "get",
		Short: "Display " + short + " resources",
		Long:  ``,
	}
	get.AddCommand(subcommands...)

	cmd := &cobra.Command{
		Use:   use,
		Short: short + " commands",
		Long:  ``,
	}
	cmd.AddCommand(get)

	return cmd
}

func newCmdLocalPVZFS() *cobra.Command {
	return newCmdLocalPVEngine("localpv-zfs", "ZFS local PV",
		newCmdLocalPVGet("volumes", "Display ZFS volumes", localpv.GetZFSVolumes, true),
		newCmdLocalPVGet("nodes", "Display ZFS nodes and their pools", localpv.GetZFSNodes, false),
	)
}

func newCmdLocalPVLVM() *cobra.Command {
	return newCmdLocalPVEngine("localpv-lvm", "LVM local PV",
		newCmdLocalPVGet("volumes", "Display LVM volumes", localpv.GetLVMVolumes, true),
		newCmdLocalPVGet("nodes", "Display LVM nodes and their volume groups", localpv.GetLVMNodes, false),
	)
}

func newCmdLocalPVHostpath() *cobra.Command {
	return newCmdLocalPVEngine("localpv-hostpath", "Hostpath local PV",
		newCmdLocalPVGet("volumes", "Display hostpath volumes", localpv.GetHostpathVolumes, true),
	)
}
