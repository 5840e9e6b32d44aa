// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package cmd wires the kubectl-openebs and upgrade-job commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openebs/kubectl-openebs/k8s"
	"github.com/openebs/kubectl-openebs/logging"
	"github.com/openebs/kubectl-openebs/logging/logfields"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "cmd")

var (
	contextName string
	kubeconfig  string
	namespace   string

	k8sClient *k8s.Client
)

// NewDefaultOpenebsCommand returns the root command of the kubectl plugin.
func NewDefaultOpenebsCommand() *cobra.Command {
	cmd := &cobra.Command{
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			// Do not require a cluster for commands that do not talk to it.
			case "completion", "help", "version":
				return nil
			}

			c, err := k8s.NewClient(contextName, kubeconfig)
			if err != nil {
				return fmt.Errorf("unable to create Kubernetes client: %w", err)
			}
			k8sClient = c
			log.WithField("context", c.ContextName()).Debug("Created Kubernetes client")
			if namespace == "" {
				namespace = c.Namespace()
			}
			return nil
		},
		Use:   "kubectl-openebs",
		Short: "kubectl plugin to upgrade and inspect OpenEBS",
		Long: `kubectl-openebs upgrades an OpenEBS helm installation, collects
supportability dumps and lists local PV engine resources.`,
		SilenceErrors: true, // this is being handled in main, no need to duplicate error messages
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "Namespace OpenEBS is running in, defaults to the namespace of the kubeconfig context")
	cmd.PersistentFlags().StringVarP(&kubeconfig, "kubeconfig", "k", "", "Path to the kubeconfig file")
	cmd.PersistentFlags().StringVar(&contextName, "context", "", "Kubernetes configuration context")

	cmd.AddCommand(
		newCmdUpgrade(),
		newCmdGet(),
		newCmdDump(),
		newCmdLocalPVZFS(),
		newCmdLocalPVLVM(),
		newCmdLocalPVHostpath(),
		newCmdVersion(),
	)
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	return cmd
}

// runInterruptible runs f with a context cancelled on SIGINT or SIGTERM.
func runInterruptible(parent context.Context, f func(context.Context) error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	return runUntilSignal(parent, sigs, f)
}

// runUntilSignal runs f until it returns or a signal is received on sigs.
// When a signal cancelled f, the returned error names the signal instead of
// the cancellation.
func runUntilSignal(parent context.Context, sigs <-chan os.Signal, f func(context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	interrupted := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			log.WithField(logfields.Signal, sig).Debug("Cancelling command")
			interrupted <- sig
			cancel()
		case <-done:
		}
	}()

	err := f(ctx)
	close(done)
	select {
	case sig := <-interrupted:
		return fmt.Errorf("Interrupted by %s", sig)
	default:
		return err
	}
}
