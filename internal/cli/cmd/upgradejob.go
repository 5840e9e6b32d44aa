// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"helm.sh/helm/v3/pkg/action"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/klog/v2"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/k8s"
	"github.com/openebs/kubectl-openebs/logging"
	"github.com/openebs/kubectl-openebs/logging/logfields"
	"github.com/openebs/kubectl-openebs/upgradejob"
)

// NewUpgradeJobCommand returns the command run inside the upgrade Job.
func NewUpgradeJobCommand() *cobra.Command {
	var params = upgradejob.Parameters{}

	cmd := &cobra.Command{
		Use:   defaults.UpgradeJobBinaryName,
		Short: "Upgrades the OpenEBS helm release from inside the cluster",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			klog.SetOutput(io.Discard)
			logging.SetupLogging(logging.LogOptionsFromEnv(defaults.LogLevelEnv), os.Stderr)

			params.PodName = os.Getenv(defaults.PodNameEnv)
			params.HelmStorageDriver = os.Getenv(defaults.HelmStorageDriverEnv)

			client, err := k8s.NewClient(contextName, kubeconfig)
			if err != nil {
				return fmt.Errorf("unable to create Kubernetes client: %w", err)
			}
			if params.Namespace == "" {
				params.Namespace = client.Namespace()
			}

			// Namespaced chart objects without an explicit namespace go to the release namespace.
			if flags, ok := client.RESTClientGetter.(*genericclioptions.ConfigFlags); ok {
				flags.Namespace = &params.Namespace
			}
			log.WithFields(map[string]interface{}{
				logfields.K8sNamespace: params.Namespace,
				logfields.HelmDriver:   params.HelmStorageDriver,
				logfields.Pod:          params.PodName,
			}).Debug("Initialising helm")
			actionConfig := new(action.Configuration)
			if err := actionConfig.Init(client.RESTClientGetter, params.Namespace, params.HelmStorageDriver, log.Debugf); err != nil {
				return fmt.Errorf("unable to initialise helm: %w", err)
			}

			return runInterruptible(cmd.Context(), upgradejob.NewJob(client, actionConfig, params).Run)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.Flags().StringVarP(&params.RestEndpoint, "rest-endpoint", "e", "", "Endpoint of the Mayastor REST API")
	cmd.Flags().StringVarP(&params.Namespace, "namespace", "n", "", "Namespace of the helm release")
	cmd.Flags().StringVarP(&params.ReleaseName, "release-name", "r", "", "Name of the helm release")
	cmd.Flags().StringVar(&params.HelmArgsSet, "helm-args-set", "", "Helm --set arguments, separated by commas")
	cmd.Flags().StringVar(&params.HelmArgsSetFile, "helm-args-set-file", "", "Helm --set-file arguments, separated by commas")
	cmd.Flags().BoolVar(&params.SkipDataPlaneRestart, "skip-data-plane-restart", false, "Do not restart the data-plane pods")
	cmd.Flags().BoolVar(&params.SkipUpgradePathValidation, "skip-upgrade-path-validation", false, "Do not validate the upgrade path")
	cmd.Flags().StringVar(&params.ChartDir, "chart-dir", defaults.UpgradeJobChartDir, "Directory of the umbrella helm chart to upgrade to")
	cmd.Flags().StringVar(&contextName, "context", "", "Kubernetes configuration context")
	cmd.Flags().StringVarP(&kubeconfig, "kubeconfig", "k", "", "Path to the kubeconfig file, in-cluster configuration is used when empty")
	_ = cmd.MarkFlagRequired("release-name")

	return cmd
}
