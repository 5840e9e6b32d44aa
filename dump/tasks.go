// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package dump

import (
	"context"
	"fmt"
	"path"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

const (
	kubernetesVersionInfoFileName    = "k8s_resources/version.txt"
	kubernetesNodesFileName          = "k8s_resources/nodes.yaml"
	kubernetesNamespacesFileName     = "k8s_resources/namespaces.yaml"
	kubernetesEventsFileName         = "k8s_resources/events.yaml"
	kubernetesPodsFileName           = "k8s_resources/pods.yaml"
	kubernetesDeploymentsFileName    = "k8s_resources/deployments.yaml"
	kubernetesDaemonSetsFileName     = "k8s_resources/daemonsets.yaml"
	kubernetesStatefulSetsFileName   = "k8s_resources/statefulsets.yaml"
	kubernetesPVCsFileName           = "k8s_resources/persistent_volume_claims.yaml"
	kubernetesPVsFileName            = "k8s_resources/persistent_volumes.yaml"
	kubernetesStorageClassesFileName = "k8s_resources/storage_classes.yaml"
	kubernetesLogsFileName           = "logs/%s-%s.log"
	kubernetesPreviousLogsFileName   = "logs/%s-%s-previous.log"
)

// listTask returns a task writing the list returned by list to filename.
func (c *Collector) listTask(description, filename string, list func(ctx context.Context) (runtime.Object, error)) Task {
	return Task{
		Description: description,
		Task: func(ctx context.Context) error {
			ctx, cancel := c.requestContext(ctx)
			defer cancel()
			v, err := list(ctx)
			if err != nil {
				return fmt.Errorf("failed to collect %s: %w", path.Base(filename), err)
			}
			if err := c.WriteList(filename, v); err != nil {
				return fmt.Errorf("failed to write %s: %w", filename, err)
			}
			return nil
		},
	}
}

func (c *Collector) commonTasks() []Task {
	ns := c.Options.Namespace
	return []Task{
		{
			Description: "Collecting Kubernetes version",
			Task: func(ctx context.Context) error {
				ctx, cancel := c.requestContext(ctx)
				defer cancel()
				v, err := c.Client.GetVersion(ctx)
				if err != nil {
					return fmt.Errorf("failed to collect Kubernetes version: %w", err)
				}
				if err := c.WriteString(kubernetesVersionInfoFileName, v); err != nil {
					return fmt.Errorf("failed to dump Kubernetes version: %w", err)
				}
				return nil
			},
		},
		c.listTask("Collecting Kubernetes nodes", kubernetesNodesFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListNodes(ctx, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes namespaces", kubernetesNamespacesFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListNamespaces(ctx, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes events", kubernetesEventsFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListEvents(ctx, ns, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes pods", kubernetesPodsFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListPods(ctx, ns, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes deployments", kubernetesDeploymentsFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListDeployments(ctx, ns, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes daemonsets", kubernetesDaemonSetsFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListDaemonSets(ctx, ns, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes statefulsets", kubernetesStatefulSetsFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListStatefulSets(ctx, ns, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes persistent volume claims", kubernetesPVCsFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListPersistentVolumeClaims(ctx, corev1.NamespaceAll, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes persistent volumes", kubernetesPVsFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListPersistentVolumes(ctx, metav1.ListOptions{})
		}),
		c.listTask("Collecting Kubernetes storage classes", kubernetesStorageClassesFileName, func(ctx context.Context) (runtime.Object, error) {
			return c.Client.ListStorageClasses(ctx, metav1.ListOptions{})
		}),
	}
}

func (c *Collector) logsTask() Task {
	return Task{
		CreatesSubtasks: true,
		Description:     "Collecting logs from openebs pods",
		Logs:            true,
		Task: func(ctx context.Context) error {
			rctx, cancel := c.requestContext(ctx)
			defer cancel()
			p, err := c.Client.ListPods(rctx, c.Options.Namespace, metav1.ListOptions{
				LabelSelector: c.Options.LoggingLabelSelector,
			})
			if err != nil {
				return fmt.Errorf("failed to get pods matching %q: %w", c.Options.LoggingLabelSelector, err)
			}
			if err := c.SubmitLogsTasks(ctx, p.Items, c.Options.Since, c.Options.LogsLimitBytes); err != nil {
				return fmt.Errorf("failed to collect logs from pods matching %q: %w", c.Options.LoggingLabelSelector, err)
			}
			return nil
		},
	}
}

// SubmitLogsTasks submits tasks to collect kubernetes logs from pods.
func (c *Collector) SubmitLogsTasks(ctx context.Context, pods []corev1.Pod, since time.Duration, limitBytes int64) error {
	t := time.Now().Add(-since)
	for _, p := range pods {
		p := p
		allContainers := make([]corev1.Container, 0, len(p.Spec.InitContainers)+len(p.Spec.Containers))
		allContainers = append(allContainers, p.Spec.InitContainers...)
		allContainers = append(allContainers, p.Spec.Containers...)
		for _, d := range allContainers {
			d := d
			if err := c.Pool.Submit(fmt.Sprintf("logs-%s-%s", p.Name, d.Name), func(context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				l, err := c.getLogs(ctx, &p, d.Name, t, limitBytes, false)
				if err != nil {
					return fmt.Errorf("failed to collect logs for %q (%q) in namespace %q: %w", p.Name, d.Name, p.Namespace, err)
				}
				if err := c.WriteString(fmt.Sprintf(kubernetesLogsFileName, p.Name, d.Name), l); err != nil {
					return fmt.Errorf("failed to collect logs for %q (%q) in namespace %q: %w", p.Name, d.Name, p.Namespace, err)
				}
				if !restarted(&p, d.Name) {
					return nil
				}
				c.logDebug("Collecting logs for restarted container %q in pod %q in namespace %q", d.Name, p.Name, p.Namespace)
				u, err := c.getLogs(ctx, &p, d.Name, t, limitBytes, true)
				if err != nil {
					return fmt.Errorf("failed to collect previous logs for %q (%q) in namespace %q: %w", p.Name, d.Name, p.Namespace, err)
				}
				if err := c.WriteString(fmt.Sprintf(kubernetesPreviousLogsFileName, p.Name, d.Name), u); err != nil {
					return fmt.Errorf("failed to collect previous logs for %q (%q) in namespace %q: %w", p.Name, d.Name, p.Namespace, err)
				}
				return nil
			}); err != nil {
				return fmt.Errorf("failed to submit logs task for %q (%q): %w", p.Name, d.Name, err)
			}
		}
	}
	return nil
}

func (c *Collector) getLogs(ctx context.Context, p *corev1.Pod, container string, since time.Time, limitBytes int64, previous bool) (string, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	return c.Client.GetLogs(ctx, p.Namespace, p.Name, container, since, limitBytes, previous)
}

func restarted(p *corev1.Pod, container string) bool {
	for _, statuses := range [][]corev1.ContainerStatus{p.Status.InitContainerStatuses, p.Status.ContainerStatuses} {
		for _, s := range statuses {
			if s.Name == container && s.RestartCount > 0 {
				return true
			}
		}
	}
	return false
}
