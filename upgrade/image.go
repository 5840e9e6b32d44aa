// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgrade

import (
	"context"
	"fmt"
	"strings"

	"github.com/distribution/distribution/reference"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openebs/kubectl-openebs/defaults"
)

const imageSourcePodSelector = "app in (api-rest,localpv-provisioner,openebs-zfs-controller,openebs-lvm-controller)"

type podLister interface {
	ListPods(ctx context.Context, namespace string, options metav1.ListOptions) (*corev1.PodList, error)
}

// ImageProperties are the image pull settings of the upgrade Job, taken from
// an already running openebs controller.
type ImageProperties struct {
	PullSecrets []corev1.LocalObjectReference
	Registry    string
	PullPolicy  corev1.PullPolicy
}

func imageSourceContainers(releaseName string) []string {
	return []string{
		"api-rest",
		"openebs-zfs-plugin",
		"openebs-lvm-plugin",
		releaseName + "-localpv-provisioner",
	}
}

// NewImagePropertiesFromRelease picks the first openebs controller pod of the
// release and copies its pull secrets, registry and pull policy. registry
// overrides the detected registry when set.
func NewImagePropertiesFromRelease(ctx context.Context, client podLister, namespace, releaseName, registry string) (*ImageProperties, error) {
	pods, err := client.ListPods(ctx, namespace, metav1.ListOptions{LabelSelector: imageSourcePodSelector})
	if err != nil {
		return nil, fmt.Errorf("unable to list openebs pods: %w", err)
	}

	names := imageSourceContainers(releaseName)
	for _, pod := range pods.Items {
		container, ok := lo.Find(pod.Spec.Containers, func(c corev1.Container) bool {
			return lo.Contains(names, c.Name)
		})
		if !ok {
			continue
		}
		if registry == "" {
			registry = imageRegistry(container.Image)
		}
		return &ImageProperties{
			PullSecrets: pod.Spec.ImagePullSecrets,
			Registry:    registry,
			PullPolicy:  container.ImagePullPolicy,
		}, nil
	}
	return nil, fmt.Errorf("Couldn't pick out an openebs container, one of '%v', from openebs Pods", names)
}

// imageRegistry returns the registry an image is explicitly pulled from, or
// the default registry when the image name carries none.
func imageRegistry(image string) string {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return defaults.DefaultImageRegistry
	}
	domain := reference.Domain(named)
	if !strings.HasPrefix(image, domain+"/") {
		return defaults.DefaultImageRegistry
	}
	return domain
}
