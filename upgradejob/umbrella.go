// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"context"
	"fmt"

	"github.com/blang/semver/v4"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/cli/values"
	"helm.sh/helm/v3/pkg/getter"
	"sigs.k8s.io/yaml"
)

// UpgradeRunner performs the helm upgrade and returns the user supplied
// values of the upgraded release as YAML.
type UpgradeRunner func(ctx context.Context) ([]byte, error)

// UmbrellaUpgrader upgrades a release of the openebs umbrella chart.
type UmbrellaUpgrader struct {
	cfg         *action.Configuration
	chart       *chart.Chart
	namespace   string
	releaseName string
	valueOpts   *values.Options

	sourceVersion semver.Version
	targetVersion semver.Version
}

// UmbrellaUpgraderOptions configures an UmbrellaUpgrader.
type UmbrellaUpgraderOptions struct {
	Namespace   string
	ReleaseName string
	// ValuesFile is applied before Set and SetFile.
	ValuesFile string
	// Set and SetFile are comma separated "key=value" lists in helm --set and
	// --set-file syntax.
	Set           string
	SetFile       string
	SourceVersion semver.Version
}

// NewUmbrellaUpgrader returns an upgrader for c, the chart shipped with the
// upgrade job.
func NewUmbrellaUpgrader(cfg *action.Configuration, c *chart.Chart, o UmbrellaUpgraderOptions) (*UmbrellaUpgrader, error) {
	target, err := semver.ParseTolerant(c.Metadata.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid chart version %q: %w", c.Metadata.Version, err)
	}

	valueOpts := &values.Options{}
	if o.ValuesFile != "" {
		valueOpts.ValueFiles = []string{o.ValuesFile}
	}
	if o.Set != "" {
		valueOpts.Values = []string{o.Set}
	}
	if o.SetFile != "" {
		valueOpts.FileValues = []string{o.SetFile}
	}

	return &UmbrellaUpgrader{
		cfg:           cfg,
		chart:         c,
		namespace:     o.Namespace,
		releaseName:   o.ReleaseName,
		valueOpts:     valueOpts,
		sourceVersion: o.SourceVersion,
		targetVersion: target,
	}, nil
}

func (u *UmbrellaUpgrader) SourceVersion() semver.Version {
	return u.sourceVersion
}

func (u *UmbrellaUpgrader) TargetVersion() semver.Version {
	return u.targetVersion
}

func (u *UmbrellaUpgrader) upgrade(ctx context.Context, dryRun bool) error {
	vals, err := u.valueOpts.MergeValues(getter.All(cli.New()))
	if err != nil {
		return fmt.Errorf("unable to merge helm values: %w", err)
	}

	client := action.NewUpgrade(u.cfg)
	client.Namespace = u.namespace
	client.ReuseValues = true
	client.DryRun = dryRun

	if _, err := client.RunWithContext(ctx, u.releaseName, u.chart, vals); err != nil {
		return fmt.Errorf("helm upgrade of release %s failed: %w", u.releaseName, err)
	}
	return nil
}

// DryRun runs the upgrade with --dry-run and, when it succeeds, returns the
// runner for the real upgrade.
func (u *UmbrellaUpgrader) DryRun(ctx context.Context) (UpgradeRunner, error) {
	log.Info("Running helm upgrade dry-run...")
	if err := u.upgrade(ctx, true); err != nil {
		return nil, err
	}
	log.Info("Helm upgrade dry-run succeeded!")

	return func(ctx context.Context) ([]byte, error) {
		log.Info("Starting helm upgrade...")
		if err := u.upgrade(ctx, false); err != nil {
			return nil, err
		}
		log.Info("Helm upgrade successful!")

		vals, err := action.NewGetValues(u.cfg).Run(u.releaseName)
		if err != nil {
			return nil, fmt.Errorf("unable to get values of release %s: %w", u.releaseName, err)
		}
		return yaml.Marshal(vals)
	}, nil
}
