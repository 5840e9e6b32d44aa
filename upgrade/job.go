// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgrade

import (
	"fmt"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openebs/kubectl-openebs/defaults"
)

// JobImage returns the fully qualified upgrade-job image for registry.
func JobImage(registry string) string {
	return fmt.Sprintf("%s/%s/%s:%s", registry, defaults.UpgradeJobImageRepo, defaults.UpgradeJobImageName, defaults.UpgradeObjSuffix())
}

func (k *K8sUpgrader) jobArgs(releaseName, setFileArgs string) []string {
	args := []string{
		fmt.Sprintf("--rest-endpoint=http://%s-api-rest:%d", releaseName, defaults.APIRestPort),
		"--namespace=" + k.params.Namespace,
		"--release-name=" + releaseName,
		"--helm-args-set=" + strings.Join(k.params.Set, ","),
		"--helm-args-set-file=" + setFileArgs,
	}
	if k.params.SkipDataPlaneRestart {
		args = append(args, "--skip-data-plane-restart")
	}
	if k.params.SkipUpgradePathValidationForUnsupportedVersion {
		args = append(args, "--skip-upgrade-path-validation")
	}
	return args
}

// generateJob returns the upgrade Job. Unrecoverable errors are retried
// BackoffLimit times; the job process handles the recoverable ones itself.
func (k *K8sUpgrader) generateJob(releaseName, setFileArgs string, image *ImageProperties) *batchv1.Job {
	backoffLimit := int32(defaults.UpgradeJobBackoffLimit)
	readOnly := true

	return &batchv1.Job{
		TypeMeta: metav1.TypeMeta{Kind: "Job", APIVersion: "batch/v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      JobName(releaseName),
			Namespace: k.params.Namespace,
			Labels:    Labels(),
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: Labels(),
				},
				Spec: corev1.PodSpec{
					ImagePullSecrets:   image.PullSecrets,
					RestartPolicy:      corev1.RestartPolicyOnFailure,
					ServiceAccountName: UpgradeNameConcat(releaseName, serviceAccountComponent),
					Containers: []corev1.Container{
						{
							Name:            defaults.UpgradeJobContainerName,
							Image:           JobImage(image.Registry),
							ImagePullPolicy: image.PullPolicy,
							Args:            k.jobArgs(releaseName, setFileArgs),
							Env: []corev1.EnvVar{
								{Name: defaults.LogLevelEnv, Value: k.params.LogLevel},
								{
									Name: defaults.PodNameEnv,
									ValueFrom: &corev1.EnvVarSource{
										FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
									},
								},
								{Name: defaults.HelmStorageDriverEnv, Value: k.params.HelmStorageDriver},
							},
							LivenessProbe: &corev1.Probe{
								ProbeHandler: corev1.ProbeHandler{
									Exec: &corev1.ExecAction{
										Command: []string{"pgrep", defaults.UpgradeJobBinaryName},
									},
								},
								InitialDelaySeconds: 10,
								PeriodSeconds:       60,
							},
							VolumeMounts: []corev1.VolumeMount{
								{
									Name:      defaults.UpgradeConfigMapVolume,
									MountPath: defaults.UpgradeConfigMapMountPath,
									ReadOnly:  readOnly,
								},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: defaults.UpgradeConfigMapVolume,
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{
										Name: UpgradeNameConcat(releaseName, configMapComponent),
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
