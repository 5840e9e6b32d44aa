// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/logging/logfields"
)

type dataPlaneClient interface {
	ListPods(ctx context.Context, namespace string, options metav1.ListOptions) (*corev1.PodList, error)
	DeletePod(ctx context.Context, namespace, name string, opts metav1.DeleteOptions) error
	ListControllerRevisions(ctx context.Context, namespace string, o metav1.ListOptions) (*appsv1.ControllerRevisionList, error)
}

// DataPlaneRestarter replaces io-engine pods that do not run the latest
// revision of their DaemonSet, one node at a time.
type DataPlaneRestarter struct {
	client    dataPlaneClient
	namespace string
	// Timeout bounds the wait for each replacement pod.
	Timeout  time.Duration
	Interval time.Duration
}

func NewDataPlaneRestarter(client dataPlaneClient, namespace string) *DataPlaneRestarter {
	return &DataPlaneRestarter{
		client:    client,
		namespace: namespace,
		Timeout:   defaults.DataPlaneRestartTimeout,
		Interval:  defaults.DataPlaneRestartInterval,
	}
}

func revisionHash(cr *appsv1.ControllerRevision) string {
	if h, ok := cr.Labels[defaults.DSControllerRevisionHashLabelKey]; ok {
		return h
	}
	// DaemonSet revisions are named "<daemonset>-<hash>".
	return cr.Name[strings.LastIndex(cr.Name, "-")+1:]
}

func (r *DataPlaneRestarter) latestRevisionHash(ctx context.Context) (string, error) {
	l, err := r.client.ListControllerRevisions(ctx, r.namespace, metav1.ListOptions{LabelSelector: defaults.IOEngineLabel})
	if err != nil {
		return "", fmt.Errorf("unable to list io-engine controller revisions: %w", err)
	}
	if len(l.Items) == 0 {
		return "", fmt.Errorf("no controller revisions found for label %s in namespace %s", defaults.IOEngineLabel, r.namespace)
	}
	latest := lo.MaxBy(l.Items, func(a, b appsv1.ControllerRevision) bool {
		return a.Revision > b.Revision
	})
	return revisionHash(&latest), nil
}

func isPodReady(p *corev1.Pod) bool {
	if p.DeletionTimestamp != nil {
		return false
	}
	for _, c := range p.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func (r *DataPlaneRestarter) ioEnginePods(ctx context.Context) ([]corev1.Pod, error) {
	l, err := r.client.ListPods(ctx, r.namespace, metav1.ListOptions{LabelSelector: defaults.IOEngineLabel})
	if err != nil {
		return nil, fmt.Errorf("unable to list io-engine pods: %w", err)
	}
	return l.Items, nil
}

func (r *DataPlaneRestarter) waitForReplacement(ctx context.Context, node, hash string) error {
	return wait.PollUntilContextTimeout(ctx, r.Interval, r.Timeout, false, func(ctx context.Context) (bool, error) {
		pods, err := r.ioEnginePods(ctx)
		if err != nil {
			return false, err
		}
		_, ok := lo.Find(pods, func(p corev1.Pod) bool {
			return p.Spec.NodeName == node && p.Labels[defaults.DSControllerRevisionHashLabelKey] == hash && isPodReady(&p)
		})
		return ok, nil
	})
}

// Restart deletes every outdated io-engine pod and waits for its replacement
// on the same node to become ready before moving on.
func (r *DataPlaneRestarter) Restart(ctx context.Context) error {
	hash, err := r.latestRevisionHash(ctx)
	if err != nil {
		return err
	}
	pods, err := r.ioEnginePods(ctx)
	if err != nil {
		return err
	}
	stale := lo.Filter(pods, func(p corev1.Pod, _ int) bool {
		return p.Labels[defaults.DSControllerRevisionHashLabelKey] != hash
	})
	sort.Slice(stale, func(i, j int) bool { return stale[i].Name < stale[j].Name })

	for _, p := range stale {
		scopedLog := log.WithFields(map[string]interface{}{
			logfields.Pod:      p.Name,
			logfields.NodeName: p.Spec.NodeName,
			logfields.Revision: hash,
		})
		scopedLog.Info("Restarting io-engine pod")
		if err := r.client.DeletePod(ctx, r.namespace, p.Name, metav1.DeleteOptions{}); err != nil {
			return fmt.Errorf("unable to delete io-engine pod %s: %w", p.Name, err)
		}
		if err := r.waitForReplacement(ctx, p.Spec.NodeName, hash); err != nil {
			return fmt.Errorf("io-engine pod on node %s did not become ready: %w", p.Spec.NodeName, err)
		}
		scopedLog.Info("io-engine pod restarted")
	}
	return nil
}
