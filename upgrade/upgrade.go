// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package upgrade launches and tracks the in-cluster openebs upgrade Job.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	eventsv1 "k8s.io/api/events/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	storagev1 "k8s.io/api/storage/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/internal/console"
	"github.com/openebs/kubectl-openebs/internal/helm"
	"github.com/openebs/kubectl-openebs/logging"
	"github.com/openebs/kubectl-openebs/logging/logfields"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "upgrade")

type k8sUpgraderImplementation interface {
	ListSecrets(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.SecretList, error)
	ListConfigMaps(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.ConfigMapList, error)
	CreateServiceAccount(ctx context.Context, namespace string, account *corev1.ServiceAccount, opts metav1.CreateOptions) (*corev1.ServiceAccount, error)
	DeleteServiceAccount(ctx context.Context, namespace, name string, opts metav1.DeleteOptions) error
	CreateClusterRole(ctx context.Context, role *rbacv1.ClusterRole, opts metav1.CreateOptions) (*rbacv1.ClusterRole, error)
	DeleteClusterRole(ctx context.Context, name string, opts metav1.DeleteOptions) error
	CreateClusterRoleBinding(ctx context.Context, role *rbacv1.ClusterRoleBinding, opts metav1.CreateOptions) (*rbacv1.ClusterRoleBinding, error)
	DeleteClusterRoleBinding(ctx context.Context, name string, opts metav1.DeleteOptions) error
	CreateConfigMap(ctx context.Context, namespace string, config *corev1.ConfigMap, opts metav1.CreateOptions) (*corev1.ConfigMap, error)
	DeleteConfigMap(ctx context.Context, namespace, name string, opts metav1.DeleteOptions) error
	CreateJob(ctx context.Context, namespace string, job *batchv1.Job, opts metav1.CreateOptions) (*batchv1.Job, error)
	DeleteJob(ctx context.Context, namespace, name string, opts metav1.DeleteOptions) error
	ListPods(ctx context.Context, namespace string, options metav1.ListOptions) (*corev1.PodList, error)
	ListNodes(ctx context.Context, options metav1.ListOptions) (*corev1.NodeList, error)
	ListEvents(ctx context.Context, namespace string, o metav1.ListOptions) (*eventsv1.EventList, error)
	DeleteEvent(ctx context.Context, namespace, name string, opts metav1.DeleteOptions) error
	ListPersistentVolumes(ctx context.Context, o metav1.ListOptions) (*corev1.PersistentVolumeList, error)
	ListStorageClasses(ctx context.Context, o metav1.ListOptions) (*storagev1.StorageClassList, error)
}

type Parameters struct {
	Namespace         string
	ReleaseName       string
	Registry          string
	HelmStorageDriver string
	LogLevel          string

	AllowUnstable                                  bool
	DryRun                                         bool
	SkipDataPlaneRestart                           bool
	SkipSingleReplicaVolumeValidation              bool
	SkipReplicaRebuild                             bool
	SkipCordonedNodeValidation                     bool
	SkipUpgradePathValidationForUnsupportedVersion bool

	Set     []string
	SetFile []string

	Writer io.Writer

	// EventWaitAttempts and EventWaitInterval bound the wait for the first
	// upgrade event after the Job is created.
	EventWaitAttempts int
	EventWaitInterval time.Duration
}

type K8sUpgrader struct {
	client  k8sUpgraderImplementation
	params  Parameters
	console *console.Printer

	logMu sync.Mutex
}

func NewK8sUpgrader(client k8sUpgraderImplementation, p Parameters) *K8sUpgrader {
	if p.EventWaitAttempts == 0 {
		p.EventWaitAttempts = defaults.UpgradeEventWaitAttempts
	}
	if p.EventWaitInterval == 0 {
		p.EventWaitInterval = defaults.UpgradeEventWaitInterval
	}
	if p.LogLevel == "" {
		p.LogLevel = logging.DefaultLogLevel.String()
	}
	return &K8sUpgrader{
		client:  client,
		params:  p,
		console: console.Default,
	}
}

func (k *K8sUpgrader) Log(format string, a ...interface{}) {
	k.logMu.Lock()
	defer k.logMu.Unlock()
	fmt.Fprintf(k.params.Writer, format+"\n", a...)
}

func (k *K8sUpgrader) releaseName(ctx context.Context) (string, error) {
	if k.params.ReleaseName != "" {
		return k.params.ReleaseName, nil
	}
	return helm.ReleaseName(ctx, k.client, k.params.Namespace, k.params.HelmStorageDriver)
}

// upgradeResources are the objects created for one upgrade run.
type upgradeResources struct {
	serviceAccount     *corev1.ServiceAccount
	clusterRole        *rbacv1.ClusterRole
	clusterRoleBinding *rbacv1.ClusterRoleBinding
	configMap          *corev1.ConfigMap
	job                *batchv1.Job
}

func (k *K8sUpgrader) generateResources(ctx context.Context, releaseName string) (*upgradeResources, error) {
	data, index, err := ConfigMapData(k.params.SetFile)
	if err != nil {
		return nil, err
	}
	setFileArgs, err := JobSetFileArgs(k.params.SetFile, index)
	if err != nil {
		return nil, err
	}
	image, err := NewImagePropertiesFromRelease(ctx, k.client, k.params.Namespace, releaseName, k.params.Registry)
	if err != nil {
		return nil, err
	}

	return &upgradeResources{
		serviceAccount:     NewServiceAccount(k.params.Namespace, releaseName),
		clusterRole:        NewClusterRole(releaseName),
		clusterRoleBinding: NewClusterRoleBinding(k.params.Namespace, releaseName),
		configMap:          NewConfigMap(k.params.Namespace, releaseName, data),
		job:                k.generateJob(releaseName, setFileArgs, image),
	}, nil
}

func (r *upgradeResources) objects() []interface{} {
	return []interface{}{r.serviceAccount, r.clusterRole, r.clusterRoleBinding, r.configMap, r.job}
}

func (k *K8sUpgrader) printResources(r *upgradeResources) error {
	for _, obj := range r.objects() {
		b, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		fmt.Fprintf(k.params.Writer, "---\n%s", b)
	}
	return nil
}

// Apply validates the installed release and starts the upgrade Job.
func (k *K8sUpgrader) Apply(ctx context.Context) error {
	releaseName, err := k.releaseName(ctx)
	if err != nil {
		return err
	}
	rls, err := helm.NewReleaseFromCluster(ctx, k.client, k.params.HelmStorageDriver, releaseName, k.params.Namespace)
	if err != nil {
		return fmt.Errorf("unable to read helm release %s: %w", releaseName, err)
	}

	if err := k.preflight(ctx, rls); err != nil {
		var done *errAlreadyUpgraded
		if errors.As(err, &done) {
			k.Log("✅ %s, skipping upgrade", done.Error())
			return nil
		}
		return err
	}

	resources, err := k.generateResources(ctx, releaseName)
	if err != nil {
		return err
	}

	if k.params.DryRun {
		if err := k.printResources(resources); err != nil {
			return err
		}
		k.Log("✅ Validations passed, dry run complete")
		return nil
	}

	jobName := JobName(releaseName)
	log.WithFields(map[string]interface{}{
		logfields.Release:      releaseName,
		logfields.K8sNamespace: k.params.Namespace,
		logfields.Job:          jobName,
	}).Debug("Starting upgrade")

	if err := DeleteOlderUpgradeEvents(ctx, k.client, k.params.Namespace, jobName); err != nil {
		return err
	}

	if err := k.createResources(ctx, resources); err != nil {
		return err
	}

	for i := 0; i < k.params.EventWaitAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(k.params.EventWaitInterval):
		}
		event, err := LatestUpgradeEvent(ctx, k.client, k.params.Namespace, jobName)
		if err != nil {
			log.WithError(err).Debug("Upgrade event not available yet")
			continue
		}
		return k.handleUpgradeEvent(ctx, event, releaseName)
	}
	return nil
}

func (k *K8sUpgrader) handleUpgradeEvent(ctx context.Context, event *eventsv1.Event, releaseName string) error {
	if event.Action != ActionValidationFailed {
		k.console.Info("The upgrade has started\nYou can see the recent upgrade status using `get upgrade-status` command", "")
		return nil
	}
	if event.Note == "" {
		return fmt.Errorf("Note not present in upgrade event")
	}
	ue, err := DecodeUpgradeEvent(event)
	if err != nil {
		return err
	}
	k.console.Error("The validation for upgrade has failed, hence deleting the upgrade resources. Please re-run upgrade with valid values", ue.Message)
	return k.deleteResources(ctx, releaseName)
}

func (k *K8sUpgrader) createdLog(kind, name, namespace string) {
	if namespace != "" {
		k.Log("Created %s '%s' in the '%s' namespace", kind, name, namespace)
		return
	}
	k.Log("Created %s '%s'", kind, name)
}

func (k *K8sUpgrader) idempotentCreate(kind, name, namespace string, create func() error) error {
	err := create()
	switch {
	case err == nil:
		k.createdLog(kind, name, namespace)
		return nil
	case k8serrors.IsAlreadyExists(err):
		log.WithFields(map[string]interface{}{
			logfields.Kind: kind,
			logfields.Name: name,
		}).Debug("Resource already exists")
		k.Log("%s '%s' already exists", kind, name)
		return nil
	default:
		return fmt.Errorf("unable to create %s %s: %w", kind, name, err)
	}
}

// aggregateGroup runs functions concurrently. Unlike a plain errgroup it
// neither cancels the others on failure nor drops any error.
type aggregateGroup struct {
	g    errgroup.Group
	mu   sync.Mutex
	errs []error
}

func (a *aggregateGroup) Go(f func() error) {
	a.g.Go(func() error {
		if err := f(); err != nil {
			a.mu.Lock()
			a.errs = append(a.errs, err)
			a.mu.Unlock()
		}
		return nil
	})
}

func (a *aggregateGroup) Wait() error {
	_ = a.g.Wait()
	return utilerrors.NewAggregate(a.errs)
}

func (k *K8sUpgrader) createResources(ctx context.Context, r *upgradeResources) error {
	ns := k.params.Namespace
	opts := metav1.CreateOptions{}
	var g aggregateGroup

	g.Go(func() error {
		return k.idempotentCreate("ServiceAccount", r.serviceAccount.Name, ns, func() error {
			_, err := k.client.CreateServiceAccount(ctx, ns, r.serviceAccount, opts)
			return err
		})
	})
	g.Go(func() error {
		return k.idempotentCreate("ClusterRoleBinding", r.clusterRoleBinding.Name, "", func() error {
			_, err := k.client.CreateClusterRoleBinding(ctx, r.clusterRoleBinding, opts)
			return err
		})
	})
	g.Go(func() error {
		return k.idempotentCreate("ClusterRole", r.clusterRole.Name, "", func() error {
			_, err := k.client.CreateClusterRole(ctx, r.clusterRole, opts)
			return err
		})
	})
	g.Go(func() error {
		return k.idempotentCreate("ConfigMap", r.configMap.Name, ns, func() error {
			_, err := k.client.CreateConfigMap(ctx, ns, r.configMap, opts)
			return err
		})
	})
	g.Go(func() error {
		return k.idempotentCreate("Job", r.job.Name, ns, func() error {
			_, err := k.client.CreateJob(ctx, ns, r.job, opts)
			return err
		})
	})

	return g.Wait()
}

func (k *K8sUpgrader) idempotentDelete(kind, name, namespace string, del func() error) error {
	err := del()
	switch {
	case err == nil:
		if namespace != "" {
			k.Log("Deleted %s '%s' from the '%s' namespace", kind, name, namespace)
		} else {
			k.Log("Deleted %s '%s'", kind, name)
		}
		return nil
	case k8serrors.IsNotFound(err):
		return nil
	default:
		return fmt.Errorf("unable to delete %s %s: %w", kind, name, err)
	}
}

func (k *K8sUpgrader) deleteResources(ctx context.Context, releaseName string) error {
	ns := k.params.Namespace
	foreground := metav1.DeletePropagationForeground
	opts := metav1.DeleteOptions{PropagationPolicy: &foreground}
	var g aggregateGroup

	jobName := JobName(releaseName)
	g.Go(func() error {
		return k.idempotentDelete("Job", jobName, ns, func() error {
			return k.client.DeleteJob(ctx, ns, jobName, opts)
		})
	})
	cmName := UpgradeNameConcat(releaseName, configMapComponent)
	g.Go(func() error {
		return k.idempotentDelete("ConfigMap", cmName, ns, func() error {
			return k.client.DeleteConfigMap(ctx, ns, cmName, opts)
		})
	})
	crName := UpgradeNameConcat(releaseName, clusterRoleComponent)
	g.Go(func() error {
		return k.idempotentDelete("ClusterRole", crName, "", func() error {
			return k.client.DeleteClusterRole(ctx, crName, opts)
		})
	})
	crbName := UpgradeNameConcat(releaseName, clusterRoleBindingComponent)
	g.Go(func() error {
		return k.idempotentDelete("ClusterRoleBinding", crbName, "", func() error {
			return k.client.DeleteClusterRoleBinding(ctx, crbName, opts)
		})
	})
	saName := UpgradeNameConcat(releaseName, serviceAccountComponent)
	g.Go(func() error {
		return k.idempotentDelete("ServiceAccount", saName, ns, func() error {
			return k.client.DeleteServiceAccount(ctx, ns, saName, opts)
		})
	})

	return g.Wait()
}

// Delete removes the upgrade Job and the resources created alongside it.
func (k *K8sUpgrader) Delete(ctx context.Context) error {
	releaseName, err := k.releaseName(ctx)
	if err != nil {
		return err
	}
	k.Log("🔥 Deleting upgrade resources of release %s...", releaseName)
	return k.deleteResources(ctx, releaseName)
}
