// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package helm reads helm release records straight from the helm storage
// driver objects in the cluster.
package helm

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/blang/semver/v4"
	"helm.sh/helm/v3/pkg/release"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/logging"
	"github.com/openebs/kubectl-openebs/logging/logfields"
)

const (
	releaseDataKey    = "release"
	releaseNameLabel  = "name"
	secretReleaseType = "helm.sh/release.v1"
)

var (
	log = logging.DefaultLogger.WithField(logfields.LogSubsys, "helm")

	gzipMagic = []byte{0x1f, 0x8b, 0x08}
)

// StorageClient is the subset of the Kubernetes client needed to read helm
// release records.
type StorageClient interface {
	ListSecrets(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.SecretList, error)
	ListConfigMaps(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.ConfigMapList, error)
}

type driverKind int

const (
	driverSecrets driverKind = iota
	driverConfigMaps
)

func parseDriver(driver string) (driverKind, error) {
	switch driver {
	case "", "secret", "secrets":
		return driverSecrets, nil
	case "configmap", "configmaps":
		return driverConfigMaps, nil
	}
	return 0, fmt.Errorf("'%s' storage driver for helm is not supported", driver)
}

// storageRecord is a release record as persisted by a helm storage driver.
type storageRecord struct {
	kind   string
	name   string
	labels map[string]string
	data   []byte
	hasMap bool
	hasKey bool
}

func secretRecord(s corev1.Secret) storageRecord {
	r := storageRecord{kind: "Secret", name: s.Name, labels: s.Labels, hasMap: s.Data != nil}
	r.data, r.hasKey = s.Data[releaseDataKey]
	return r
}

func configMapRecord(cm corev1.ConfigMap) storageRecord {
	r := storageRecord{kind: "ConfigMap", name: cm.Name, labels: cm.Labels, hasMap: cm.Data != nil}
	v, ok := cm.Data[releaseDataKey]
	r.data, r.hasKey = []byte(v), ok
	return r
}

func (r storageRecord) releaseData() ([]byte, error) {
	if !r.hasMap {
		return nil, fmt.Errorf("No data in helm %s", r.kind)
	}
	if !r.hasKey {
		return nil, fmt.Errorf("No value mapped to the 'release' key in helm %s", r.kind)
	}
	return decodeRelease(r.data)
}

func listRecords(ctx context.Context, client StorageClient, kind driverKind, namespace, labelSelector string) ([]storageRecord, error) {
	switch kind {
	case driverConfigMaps:
		l, err := client.ListConfigMaps(ctx, namespace, metav1.ListOptions{
			LabelSelector: "owner=helm," + labelSelector,
		})
		if err != nil {
			return nil, err
		}
		records := make([]storageRecord, 0, len(l.Items))
		for _, cm := range l.Items {
			records = append(records, configMapRecord(cm))
		}
		return records, nil
	default:
		l, err := client.ListSecrets(ctx, namespace, metav1.ListOptions{
			LabelSelector: labelSelector,
			FieldSelector: "type=" + secretReleaseType,
		})
		if err != nil {
			return nil, err
		}
		records := make([]storageRecord, 0, len(l.Items))
		for _, s := range l.Items {
			if s.Type != "" && s.Type != secretReleaseType {
				continue
			}
			records = append(records, secretRecord(s))
		}
		return records, nil
	}
}

// ReleaseData returns the decoded JSON release record of the deployed
// revision of releaseName.
func ReleaseData(ctx context.Context, client StorageClient, driver, releaseName, namespace string) ([]byte, error) {
	kind, err := parseDriver(driver)
	if err != nil {
		return nil, err
	}
	records, err := listRecords(ctx, client, kind, namespace, "status=deployed,name="+releaseName)
	if err != nil {
		return nil, err
	}

	noun := "secret"
	if kind == driverConfigMaps {
		noun = "configmap"
	}
	switch len(records) {
	case 0:
		return nil, fmt.Errorf("No helm %s found attached to release name %s", noun, releaseName)
	case 1:
		return records[0].releaseData()
	default:
		return nil, fmt.Errorf("Too many helm %ss found attached to release name %s", noun, releaseName)
	}
}

// ReleaseName finds the name of the single deployed release of the openebs
// umbrella chart in namespace.
func ReleaseName(ctx context.Context, client StorageClient, namespace, driver string) (string, error) {
	kind, err := parseDriver(driver)
	if err != nil {
		return "", err
	}
	records, err := listRecords(ctx, client, kind, namespace, "status=deployed")
	if err != nil {
		return "", err
	}

	found := ""
	for _, r := range records {
		if r.labels == nil {
			return "", fmt.Errorf("%s '%s' in namespace '%s' doesn't have labels", r.kind, r.name, namespace)
		}
		name, ok := r.labels[releaseNameLabel]
		if !ok {
			return "", fmt.Errorf("Failed to get the value for the label key 'name' on %s '%s' in namespace '%s'", r.kind, r.name, namespace)
		}
		data, err := r.releaseData()
		if err != nil {
			return "", err
		}
		var rls release.Release
		if err := json.Unmarshal(data, &rls); err != nil {
			return "", err
		}
		if rls.Chart == nil || rls.Chart.Metadata == nil {
			return "", fmt.Errorf("Missing 'chart' value in release data")
		}
		if rls.Chart.Metadata.Name != defaults.UmbrellaChartName {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("Failed to figure out the release name of the '%s' helm chart, there are too many '%s' charts installed in the '%s' namespace. Consider specifying the release name as input.",
				defaults.UmbrellaChartName, defaults.UmbrellaChartName, namespace)
		}
		found = name
	}
	if found == "" {
		return "", fmt.Errorf("Failed to figure out the release name of the '%s' helm chart, there aren't any '%s' charts installed in the '%s' namespace",
			defaults.UmbrellaChartName, defaults.UmbrellaChartName, namespace)
	}
	log.WithFields(map[string]interface{}{
		logfields.Release:      found,
		logfields.K8sNamespace: namespace,
	}).Debug("Discovered helm release")
	return found, nil
}

// decodeRelease undoes the base64 and gzip encoding helm applies to release
// records.
func decodeRelease(data []byte) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(b, gzipMagic) {
		return b, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Release is a deployed helm release of the openebs umbrella chart.
type Release struct {
	rls     *release.Release
	version semver.Version
}

// NewReleaseFromData parses a decoded helm release record.
func NewReleaseFromData(data []byte) (*Release, error) {
	var rls release.Release
	if err := json.Unmarshal(data, &rls); err != nil {
		return nil, err
	}
	if rls.Chart == nil || rls.Chart.Metadata == nil {
		return nil, fmt.Errorf("Missing 'chart' value in release data")
	}
	v, err := semver.ParseTolerant(rls.Chart.Metadata.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid chart version %q: %w", rls.Chart.Metadata.Version, err)
	}
	return &Release{rls: &rls, version: v}, nil
}

// NewReleaseFromCluster reads the deployed revision of releaseName from the
// helm storage driver.
func NewReleaseFromCluster(ctx context.Context, client StorageClient, driver, releaseName, namespace string) (*Release, error) {
	data, err := ReleaseData(ctx, client, driver, releaseName, namespace)
	if err != nil {
		return nil, err
	}
	return NewReleaseFromData(data)
}

// Name returns the release name.
func (r *Release) Name() string {
	return r.rls.Name
}

// Version returns the chart version.
func (r *Release) Version() semver.Version {
	return r.version
}

// MayastorIsEnabled reports whether the Mayastor engine is enabled. Values set
// by the user take precedence over chart defaults, and the v4 key layout over
// the v3 one.
func (r *Release) MayastorIsEnabled() bool {
	lookups := []struct {
		values map[string]interface{}
		path   []string
	}{
		{r.rls.Config, []string{"engines", "replicated", "mayastor", "enabled"}},
		{r.rls.Config, []string{"mayastor", "enabled"}},
		{r.rls.Chart.Values, []string{"engines", "replicated", "mayastor", "enabled"}},
		{r.rls.Chart.Values, []string{"mayastor", "enabled"}},
	}
	for _, l := range lookups {
		if enabled, ok := boolAt(l.values, l.path...); ok {
			return enabled
		}
	}
	return false
}

func boolAt(values map[string]interface{}, path ...string) (bool, bool) {
	var cur interface{} = values
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false, false
		}
		if cur, ok = m[key]; !ok {
			return false, false
		}
	}
	b, ok := cur.(bool)
	return b, ok
}
