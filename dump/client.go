// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package dump

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	eventsv1 "k8s.io/api/events/v1"
	storagev1 "k8s.io/api/storage/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type KubernetesClient interface {
	GetLogs(ctx context.Context, namespace, name, container string, sinceTime time.Time, limitBytes int64, previous bool) (string, error)
	GetVersion(ctx context.Context) (string, error)
	ListDaemonSets(ctx context.Context, namespace string, o metav1.ListOptions) (*appsv1.DaemonSetList, error)
	ListDeployments(ctx context.Context, namespace string, o metav1.ListOptions) (*appsv1.DeploymentList, error)
	ListEvents(ctx context.Context, namespace string, o metav1.ListOptions) (*eventsv1.EventList, error)
	ListNamespaces(ctx context.Context, o metav1.ListOptions) (*corev1.NamespaceList, error)
	ListNodes(ctx context.Context, options metav1.ListOptions) (*corev1.NodeList, error)
	ListPersistentVolumeClaims(ctx context.Context, namespace string, o metav1.ListOptions) (*corev1.PersistentVolumeClaimList, error)
	ListPersistentVolumes(ctx context.Context, o metav1.ListOptions) (*corev1.PersistentVolumeList, error)
	ListPods(ctx context.Context, namespace string, options metav1.ListOptions) (*corev1.PodList, error)
	ListStatefulSets(ctx context.Context, namespace string, o metav1.ListOptions) (*appsv1.StatefulSetList, error)
	ListStorageClasses(ctx context.Context, o metav1.ListOptions) (*storagev1.StorageClassList, error)
	ListUnstructured(ctx context.Context, gvr schema.GroupVersionResource, namespace *string, o metav1.ListOptions) (*unstructured.UnstructuredList, error)
}
