// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgrade

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openebs/kubectl-openebs/defaults"
)

const (
	jobComponent                = "upgrade"
	serviceAccountComponent     = "upgrade-service-account"
	clusterRoleComponent        = "upgrade-cluster-role"
	clusterRoleBindingComponent = "upgrade-role-binding"
	configMapComponent          = "upgrade-config-map"
)

// UpgradeNameConcat returns "<release>-<component>-<version suffix>".
func UpgradeNameConcat(releaseName, component string) string {
	return fmt.Sprintf("%s-%s-%s", releaseName, component, defaults.UpgradeObjSuffix())
}

// JobName returns the name of the upgrade Job of releaseName.
func JobName(releaseName string) string {
	return UpgradeNameConcat(releaseName, jobComponent)
}

// Labels returns the labels set on every upgrade object.
func Labels() map[string]string {
	return map[string]string{
		"app":                        defaults.UpgradeAppLabelValue,
		defaults.LokiLoggingLabelKey: "true",
	}
}

var upgradeClusterRoleRules = []rbacv1.PolicyRule{
	{
		APIGroups: []string{"apiextensions.k8s.io"},
		Resources: []string{"customresourcedefinitions"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"apps"},
		Resources: []string{"controllerrevisions", "daemonsets", "replicasets", "statefulsets", "deployments"},
		Verbs:     []string{"create", "delete", "get", "list", "patch"},
	},
	{
		APIGroups: []string{""},
		Resources: []string{"serviceaccounts"},
		Verbs:     []string{"create", "get", "list", "delete", "patch"},
	},
	{
		APIGroups: []string{""},
		Resources: []string{"pods"},
		Verbs:     []string{"create", "get", "list", "delete", "patch", "deletecollection"},
	},
	{
		APIGroups: []string{""},
		Resources: []string{"nodes"},
		Verbs:     []string{"get", "list"},
	},
	{
		APIGroups: []string{""},
		Resources: []string{"namespaces"},
		Verbs:     []string{"get"},
	},
	{
		APIGroups: []string{"events.k8s.io"},
		Resources: []string{"events"},
		Verbs:     []string{"create"},
	},
	{
		APIGroups: []string{""},
		Resources: []string{"secrets", "persistentvolumes", "persistentvolumeclaims", "services", "configmaps"},
		Verbs:     []string{"get", "list", "watch", "create", "delete", "deletecollection", "patch", "update"},
	},
	{
		APIGroups: []string{"rbac.authorization.k8s.io"},
		Resources: []string{"roles"},
		Verbs:     []string{"create", "list", "delete", "get", "patch", "escalate", "bind"},
	},
	{
		APIGroups: []string{"monitoring.coreos.com"},
		Resources: []string{"prometheusrules", "podmonitors"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"networking.k8s.io"},
		Resources: []string{"networkpolicies"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"batch"},
		Resources: []string{"cronjobs", "jobs"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"jaegertracing.io"},
		Resources: []string{"jaegers"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"rbac.authorization.k8s.io"},
		Resources: []string{"rolebindings"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"rbac.authorization.k8s.io"},
		Resources: []string{"clusterroles"},
		Verbs:     []string{"create", "list", "delete", "get", "patch", "escalate", "bind"},
	},
	{
		APIGroups: []string{"rbac.authorization.k8s.io"},
		Resources: []string{"clusterrolebindings"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"storage.k8s.io"},
		Resources: []string{"storageclasses", "csidrivers"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"scheduling.k8s.io"},
		Resources: []string{"priorityclasses"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
	{
		APIGroups: []string{"policy"},
		Resources: []string{"poddisruptionbudgets"},
		Verbs:     []string{"create", "list", "delete", "get", "patch"},
	},
}

func NewServiceAccount(namespace, releaseName string) *corev1.ServiceAccount {
	return &corev1.ServiceAccount{
		TypeMeta: metav1.TypeMeta{Kind: "ServiceAccount", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      UpgradeNameConcat(releaseName, serviceAccountComponent),
			Namespace: namespace,
			Labels:    Labels(),
		},
	}
}

func NewClusterRole(releaseName string) *rbacv1.ClusterRole {
	rules := make([]rbacv1.PolicyRule, len(upgradeClusterRoleRules))
	for i, r := range upgradeClusterRoleRules {
		rules[i] = *r.DeepCopy()
	}
	return &rbacv1.ClusterRole{
		TypeMeta: metav1.TypeMeta{Kind: "ClusterRole", APIVersion: "rbac.authorization.k8s.io/v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   UpgradeNameConcat(releaseName, clusterRoleComponent),
			Labels: Labels(),
		},
		Rules: rules,
	}
}

// NewClusterRoleBinding binds the upgrade ClusterRole to the upgrade
// ServiceAccount in namespace.
func NewClusterRoleBinding(namespace, releaseName string) *rbacv1.ClusterRoleBinding {
	return &rbacv1.ClusterRoleBinding{
		TypeMeta: metav1.TypeMeta{Kind: "ClusterRoleBinding", APIVersion: "rbac.authorization.k8s.io/v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   UpgradeNameConcat(releaseName, clusterRoleBindingComponent),
			Labels: Labels(),
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     UpgradeNameConcat(releaseName, clusterRoleComponent),
		},
		Subjects: []rbacv1.Subject{
			{
				Kind:      rbacv1.ServiceAccountKind,
				Name:      UpgradeNameConcat(releaseName, serviceAccountComponent),
				Namespace: namespace,
			},
		},
	}
}

// NewConfigMap returns the immutable ConfigMap carrying the contents of the
// --set-file files.
func NewConfigMap(namespace, releaseName string, data map[string]string) *corev1.ConfigMap {
	immutable := true
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{Kind: "ConfigMap", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      UpgradeNameConcat(releaseName, configMapComponent),
			Namespace: namespace,
			Labels:    Labels(),
		},
		Data:      data,
		Immutable: &immutable,
	}
}

func splitSetFile(arg string) (key, path string, err error) {
	parts := strings.Split(arg, "=")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("Invalid set-file argument")
	}
	return parts[0], parts[1], nil
}

// ConfigMapData reads every file named in setFile ("key=path") and returns the
// ConfigMap data, keyed "1", "2", ... in argument order, along with the
// path-to-key index.
func ConfigMapData(setFile []string) (data map[string]string, index map[string]string, err error) {
	data = make(map[string]string, len(setFile))
	index = make(map[string]string, len(setFile))
	for i, arg := range setFile {
		_, path, err := splitSetFile(arg)
		if err != nil {
			return nil, nil, err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		key := strconv.Itoa(i + 1)
		data[key] = string(b)
		index[path] = key
	}
	return data, index, nil
}

// JobSetFileArgs rewrites "key=path" arguments to point at the ConfigMap
// mount inside the upgrade Job.
func JobSetFileArgs(setFile []string, index map[string]string) (string, error) {
	args := make([]string, 0, len(setFile))
	for _, arg := range setFile {
		key, path, err := splitSetFile(arg)
		if err != nil {
			return "", fmt.Errorf("Error parsing set-file argument")
		}
		mapped, ok := index[path]
		if !ok {
			return "", fmt.Errorf("Specified key not present")
		}
		args = append(args, fmt.Sprintf("%s=%s/%s", key, defaults.UpgradeConfigMapMountPath, mapped))
	}
	return strings.Join(args, ","), nil
}
