// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package upgradejob implements the program run by the upgrade Job: it checks
// the upgrade path, upgrades the umbrella helm release and restarts the
// data-plane.
package upgradejob

import (
	"context"
	"fmt"
	"os"

	"github.com/blang/semver/v4"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	eventsv1 "k8s.io/api/events/v1"
	apiextensions "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openebs/kubectl-openebs/internal/helm"
	"github.com/openebs/kubectl-openebs/logging"
	"github.com/openebs/kubectl-openebs/logging/logfields"
	"github.com/openebs/kubectl-openebs/upgrade"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "upgrade-job")

type jobClient interface {
	ListSecrets(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.SecretList, error)
	ListConfigMaps(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.ConfigMapList, error)
	ListCRDs(ctx context.Context, opts metav1.ListOptions) (*apiextensions.CustomResourceDefinitionList, error)
	CreateEvent(ctx context.Context, namespace string, event *eventsv1.Event, opts metav1.CreateOptions) (*eventsv1.Event, error)
	ListPods(ctx context.Context, namespace string, options metav1.ListOptions) (*corev1.PodList, error)
	DeletePod(ctx context.Context, namespace, name string, opts metav1.DeleteOptions) error
	ListControllerRevisions(ctx context.Context, namespace string, o metav1.ListOptions) (*appsv1.ControllerRevisionList, error)
}

type Parameters struct {
	// RestEndpoint is the Mayastor REST API of the release.
	RestEndpoint              string
	Namespace                 string
	ReleaseName               string
	HelmArgsSet               string
	HelmArgsSetFile           string
	SkipDataPlaneRestart      bool
	SkipUpgradePathValidation bool
	ChartDir                  string
	PodName                   string
	HelmStorageDriver         string
}

type Job struct {
	client       jobClient
	actionConfig *action.Configuration
	params       Parameters

	restarter *DataPlaneRestarter
}

// NewJob returns the upgrade job. actionConfig must be initialised for
// p.Namespace and p.HelmStorageDriver.
func NewJob(client jobClient, actionConfig *action.Configuration, p Parameters) *Job {
	return &Job{
		client:       client,
		actionConfig: actionConfig,
		params:       p,
		restarter:    NewDataPlaneRestarter(client, p.Namespace),
	}
}

// Run upgrades the release, publishing an upgrade event for every step. Any
// failure is published before it is returned.
func (j *Job) Run(ctx context.Context) error {
	scopedLog := log.WithFields(map[string]interface{}{
		logfields.Release:      j.params.ReleaseName,
		logfields.K8sNamespace: j.params.Namespace,
	})
	scopedLog.WithField("restEndpoint", j.params.RestEndpoint).Info("Starting upgrade")

	publisher := &upgrade.EventPublisher{
		Client:    j.client,
		Namespace: j.params.Namespace,
		JobName:   upgrade.JobName(j.params.ReleaseName),
		PodName:   j.params.PodName,
	}

	rls, err := helm.NewReleaseFromCluster(ctx, j.client, j.params.HelmStorageDriver, j.params.ReleaseName, j.params.Namespace)
	if err != nil {
		return j.fail(ctx, publisher, fmt.Errorf("unable to read helm release: %w", err))
	}
	c, err := loader.Load(j.params.ChartDir)
	if err != nil {
		return j.fail(ctx, publisher, fmt.Errorf("unable to load chart from %s: %w", j.params.ChartDir, err))
	}
	target, err := semver.ParseTolerant(c.Metadata.Version)
	if err != nil {
		return j.fail(ctx, publisher, fmt.Errorf("invalid chart version %q: %w", c.Metadata.Version, err))
	}
	source := rls.Version()
	publisher.FromVersion = source.String()
	publisher.ToVersion = target.String()

	if err := ValidateUpgradePath(source, target, j.params.SkipUpgradePathValidation); err != nil {
		scopedLog.WithError(err).Error("Upgrade path validation failed")
		if perr := publisher.Publish(ctx, upgrade.ActionValidationFailed, err.Error()); perr != nil {
			scopedLog.WithError(perr).Warn("Unable to publish upgrade event")
		}
		return err
	}

	mayastorEnabled := rls.MayastorIsEnabled()
	valuesFile, err := GenerateValuesFile(ctx, j.client, j.params.ChartDir, source, target, mayastorEnabled)
	if err != nil {
		return j.fail(ctx, publisher, err)
	}
	defer os.Remove(valuesFile)

	upgrader, err := NewUmbrellaUpgrader(j.actionConfig, c, UmbrellaUpgraderOptions{
		Namespace:     j.params.Namespace,
		ReleaseName:   j.params.ReleaseName,
		ValuesFile:    valuesFile,
		Set:           j.params.HelmArgsSet,
		SetFile:       j.params.HelmArgsSetFile,
		SourceVersion: source,
	})
	if err != nil {
		return j.fail(ctx, publisher, err)
	}

	if err := publisher.Publish(ctx, upgrade.ActionUpgradingControlPlane, "Upgrading control-plane"); err != nil {
		return err
	}
	run, err := upgrader.DryRun(ctx)
	if err != nil {
		return j.fail(ctx, publisher, err)
	}
	finalValues, err := run(ctx)
	if err != nil {
		return j.fail(ctx, publisher, err)
	}
	scopedLog.Debugf("Release values after upgrade:\n%s", finalValues)

	if mayastorEnabled && !j.params.SkipDataPlaneRestart {
		if err := publisher.Publish(ctx, upgrade.ActionUpgradingDataPlane, "Upgrading data-plane"); err != nil {
			return err
		}
		if err := j.restarter.Restart(ctx); err != nil {
			return j.fail(ctx, publisher, err)
		}
	}

	if err := publisher.Publish(ctx, upgrade.ActionSuccessfulUpgrade, "Upgrade successful"); err != nil {
		return err
	}
	scopedLog.WithFields(map[string]interface{}{
		logfields.SourceVersion: source.String(),
		logfields.TargetVersion: target.String(),
	}).Info("Upgrade successful")
	return nil
}

func (j *Job) fail(ctx context.Context, publisher *upgrade.EventPublisher, err error) error {
	log.WithError(err).Error("Upgrade failed")
	if perr := publisher.Publish(ctx, upgrade.ActionFailed, err.Error()); perr != nil {
		log.WithError(perr).Warn("Unable to publish upgrade event")
	}
	return err
}
