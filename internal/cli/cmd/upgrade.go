// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/logging"
	"github.com/openebs/kubectl-openebs/upgrade"
)

// upgradeParameters fills the fields shared by every upgrade subcommand.
func upgradeParameters(p upgrade.Parameters, w io.Writer) upgrade.Parameters {
	p.Namespace = namespace
	p.HelmStorageDriver = os.Getenv(defaults.HelmStorageDriverEnv)
	p.LogLevel = logging.LogOptionsFromEnv(defaults.LogLevelEnv).GetLogLevel().String()
	p.Writer = w
	return p
}

func newCmdUpgrade() *cobra.Command {
	var params = upgrade.Parameters{}

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the OpenEBS helm release",
		Long: `Validates the installed release and launches the upgrade Job, which
upgrades the umbrella helm chart and restarts the data-plane.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Silence klog to avoid displaying "throttling" messages - those are expected.
			klog.SetOutput(io.Discard)

			return runInterruptible(cmd.Context(), upgrade.NewK8sUpgrader(k8sClient, upgradeParameters(params, cmd.OutOrStdout())).Apply)
		},
	}

	cmd.Flags().BoolVarP(&params.DryRun, "dry-run", "d", false, "Print the upgrade resources without creating them")
	cmd.Flags().StringVar(&params.ReleaseName, "release-name", "", "Name of the helm release, discovered when empty")
	cmd.Flags().StringVar(&params.Registry, "registry", "", "Registry to pull the upgrade-job image from, defaults to the registry of the release images")
	cmd.Flags().BoolVar(&params.AllowUnstable, "allow-unstable", false, "Allow upgrading from a stable release to an unstable one")

	skipFlags := pflag.NewFlagSet("Validation", pflag.ContinueOnError)
	skipFlags.BoolVar(&params.SkipDataPlaneRestart, "skip-data-plane-restart", false, "Do not restart the data-plane pods after the control-plane upgrade")
	skipFlags.BoolVar(&params.SkipSingleReplicaVolumeValidation, "skip-single-replica-volume-validation", false, "Do not fail on volumes with a single replica")
	skipFlags.BoolVar(&params.SkipReplicaRebuild, "skip-replica-rebuild", false, "Do not check for replica rebuilds in progress")
	skipFlags.BoolVar(&params.SkipCordonedNodeValidation, "skip-cordoned-node-validation", false, "Do not fail on cordoned nodes running io-engine pods")
	skipFlags.BoolVar(&params.SkipUpgradePathValidationForUnsupportedVersion, "skip-upgrade-path-validation-for-unsupported-version", false, "Upgrade even when the source version is not supported")
	cmd.Flags().AddFlagSet(skipFlags)

	cmd.Flags().StringSliceVar(&params.Set, "set", nil, "Helm values to set on the command line (can specify multiple or separate values with commas: key1=val1,key2=val2)")
	cmd.Flags().StringSliceVar(&params.SetFile, "set-file", nil, "Helm values from files (can specify multiple or separate values with commas: key1=path1,key2=path2)")

	cmd.AddCommand(newCmdUpgradeDelete())

	return cmd
}

func newCmdUpgradeDelete() *cobra.Command {
	var params = upgrade.Parameters{}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the upgrade Job and its resources",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			klog.SetOutput(io.Discard)

			return runInterruptible(cmd.Context(), upgrade.NewK8sUpgrader(k8sClient, upgradeParameters(params, cmd.OutOrStdout())).Delete)
		},
	}

	cmd.Flags().StringVar(&params.ReleaseName, "release-name", "", "Name of the helm release, discovered when empty")

	return cmd
}
