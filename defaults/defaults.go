// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package defaults

import (
	"strings"
	"time"

	"github.com/blang/semver/v4"
)

const (
	UmbrellaChartName = "openebs"

	UpgradeJobImageRepo       = "openebs"
	UpgradeJobImageName       = "openebs-upgrade-job"
	UpgradeJobImageTag        = "develop"
	UpgradeJobContainerName   = "openebs-upgrade-job"
	UpgradeJobBinaryName      = "upgrade-job"
	UpgradeJobBackoffLimit    = 6
	UpgradeJobChartDir        = "/k8s/helm/openebs"
	UpgradeConfigMapMountPath = "/upgrade-config-map"
	UpgradeConfigMapVolume    = "upgrade-config-map"
	UpgradeEventReason        = "OpenebsUpgrade"
	UpgradeEventController    = "openebs.io/upgrade-job"
	UpgradeAppLabelValue      = "upgrade"

	DefaultImageRegistry = "docker.io"

	HelmStorageDriverEnv = "HELM_DRIVER"
	LogLevelEnv          = "LOG_LEVEL"
	PodNameEnv           = "POD_NAME"

	// HTTPDataPageSize is the page size for paginated list calls.
	HTTPDataPageSize = 500
	// DynamicListPageSize is the page size used when dumping custom resources.
	DynamicListPageSize = 100

	LokiLoggingLabelKey = "openebs.io/logging"

	IOEngineLabel                    = "app=io-engine"
	DSControllerRevisionHashLabelKey = "controller-revision-hash"

	APIRestPort = 8081

	UpgradeEventWaitAttempts = 6
	UpgradeEventWaitInterval = 10 * time.Second

	DataPlaneRestartTimeout  = 10 * time.Minute
	DataPlaneRestartInterval = 5 * time.Second
)

var (
	// Version is the build version, set via -ldflags.
	Version = ""

	// UmbrellaChartVersionLowerBound is the oldest supported helm chart version.
	UmbrellaChartVersionLowerBound = semver.MustParse("3.0.0")
	// FourDotO is release 4.0.0, which moved the CRDs into sub-charts.
	FourDotO = semver.MustParse("4.0.0")
	// PartialRebuildDisableExtents bounds the source versions from which an
	// upgrade requires partial rebuild to be disabled. Lower bound inclusive.
	PartialRebuildDisableExtents = [2]semver.Version{
		semver.MustParse("3.7.0"),
		semver.MustParse("3.10.0"),
	}
)

// UpgradeObjSuffix returns the name suffix of the upgrade-job and the
// resources created alongside it.
func UpgradeObjSuffix() string {
	tag := Version
	if tag == "" {
		tag = UpgradeJobImageTag
	}
	return strings.ReplaceAll(tag, ".", "-")
}
