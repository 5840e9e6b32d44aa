// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/openebs/kubectl-openebs/dump"
)

func newCmdDump() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Collect supportability information",
		Long:  ``,
	}

	cmd.AddCommand(newCmdDumpSystem())

	return cmd
}

func newCmdDumpSystem() *cobra.Command {
	var dumpOptions = dump.Options{
		Writer: dump.DefaultWriter,
	}

	cmd := &cobra.Command{
		Use:   "system",
		Short: "Collects the state of the OpenEBS installation into an archive",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Silence klog to avoid displaying "throttling" messages - those are expected.
			klog.SetOutput(io.Discard)

			// The dump targets the openebs namespace unless -n is given.
			if cmd.Flags().Changed("namespace") {
				dumpOptions.Namespace = namespace
			}
			collector, err := dump.NewCollector(k8sClient, dumpOptions, time.Now())
			if err != nil {
				return fmt.Errorf("failed to create dump collector: %w", err)
			}
			return runInterruptible(cmd.Context(), func(ctx context.Context) error {
				if err := collector.Run(ctx); err != nil {
					return fmt.Errorf("failed to collect dump: %w", err)
				}
				return nil
			})
		},
	}

	dumpOptions.Namespace = dump.DefaultNamespace
	cmd.Flags().StringVarP(&dumpOptions.OutputDirectory,
		"output-directory-path", "d", dump.DefaultOutputDirectory,
		"Directory the dump archive is written to")
	cmd.Flags().StringVar(&dumpOptions.OutputFileName,
		"output-filename", dump.DefaultOutputFileName,
		"The name of the dump archive without extension. '<ts>' is replaced with the timestamp.")
	cmd.Flags().DurationVarP(&dumpOptions.Since,
		"since", "s", dump.DefaultSince,
		"How far back in time to collect logs")
	cmd.Flags().DurationVarP(&dumpOptions.Timeout,
		"timeout", "t", dump.DefaultTimeout,
		"Timeout of each Kubernetes API request")
	cmd.Flags().StringVarP(&dumpOptions.LoggingLabelSelector,
		"logging-label-selector", "l", dump.DefaultLoggingLabelSelector,
		"The labels used to target the pods whose logs are collected")
	cmd.Flags().BoolVar(&dumpOptions.DisableLogCollection,
		"disable-log-collection", false,
		"Do not collect pod logs")
	cmd.Flags().Int64Var(&dumpOptions.LogsLimitBytes,
		"logs-limit-bytes", dump.DefaultLogsLimitBytes,
		"The limit on the number of bytes to retrieve when collecting logs")
	cmd.Flags().IntVar(&dumpOptions.WorkerCount,
		"worker-count", dump.DefaultWorkerCount,
		"The number of workers to use")
	cmd.Flags().BoolVar(&dumpOptions.Debug,
		"debug", dump.DefaultDebug,
		"Whether to enable debug logging")

	return cmd
}
