// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	eventsv1 "k8s.io/api/events/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/logging/logfields"
)

// Actions recorded on upgrade events.
const (
	ActionValidationFailed      = "Validation Failed"
	ActionUpgradingControlPlane = "Upgrading control-plane"
	ActionUpgradingDataPlane    = "Upgrading data-plane"
	ActionSuccessfulUpgrade     = "Successful upgrade"
	ActionFailed                = "Failed"
)

// ErrNoUpgradeEvent is returned when the upgrade Job has not published an
// event yet.
var ErrNoUpgradeEvent = errors.New("No upgrade event present")

// UpgradeEvent is the JSON payload of an upgrade event note.
type UpgradeEvent struct {
	FromVersion string `json:"fromVersion"`
	ToVersion   string `json:"toVersion"`
	Message     string `json:"message"`
}

type eventLister interface {
	ListEvents(ctx context.Context, namespace string, o metav1.ListOptions) (*eventsv1.EventList, error)
}

type eventDeleter interface {
	eventLister
	DeleteEvent(ctx context.Context, namespace, name string, opts metav1.DeleteOptions) error
}

type eventCreator interface {
	CreateEvent(ctx context.Context, namespace string, event *eventsv1.Event, opts metav1.CreateOptions) (*eventsv1.Event, error)
}

// jobEventsFieldSelector selects the events regarding the upgrade Job.
func jobEventsFieldSelector(jobName string) string {
	return fmt.Sprintf("regarding.kind=Job,regarding.name=%s", jobName)
}

// ListEvents lists events page by page, following continue tokens.
func ListEvents(ctx context.Context, client eventLister, namespace, labelSelector, fieldSelector string) ([]eventsv1.Event, error) {
	events := make([]eventsv1.Event, 0, defaults.HTTPDataPageSize)
	opts := metav1.ListOptions{
		LabelSelector: labelSelector,
		FieldSelector: fieldSelector,
		Limit:         defaults.HTTPDataPageSize,
	}
	for {
		l, err := client.ListEvents(ctx, namespace, opts)
		if err != nil {
			return nil, fmt.Errorf("unable to list events in namespace %s: %w", namespace, err)
		}
		events = append(events, l.Items...)
		if l.Continue == "" {
			return events, nil
		}
		opts.Continue = l.Continue
	}
}

func jobEvents(ctx context.Context, client eventLister, namespace, jobName string) ([]eventsv1.Event, error) {
	events, err := ListEvents(ctx, client, namespace, "", jobEventsFieldSelector(jobName))
	if err != nil {
		return nil, err
	}
	// Not every API server honours field selectors on events.
	return lo.Filter(events, func(e eventsv1.Event, _ int) bool {
		return e.Regarding.Kind == "Job" && e.Regarding.Name == jobName
	}), nil
}

// DeleteOlderUpgradeEvents removes the events left behind by a previous run
// of the upgrade Job.
func DeleteOlderUpgradeEvents(ctx context.Context, client eventDeleter, namespace, jobName string) error {
	events, err := jobEvents(ctx, client, namespace, jobName)
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := client.DeleteEvent(ctx, namespace, e.Name, metav1.DeleteOptions{}); err != nil && !k8serrors.IsNotFound(err) {
			return fmt.Errorf("unable to delete event %s: %w", e.Name, err)
		}
	}
	return nil
}

func eventTime(e *eventsv1.Event) time.Time {
	if !e.EventTime.IsZero() {
		return e.EventTime.Time
	}
	return e.CreationTimestamp.Time
}

// LatestUpgradeEvent returns the most recent upgrade event regarding the
// upgrade Job.
func LatestUpgradeEvent(ctx context.Context, client eventLister, namespace, jobName string) (*eventsv1.Event, error) {
	events, err := jobEvents(ctx, client, namespace, jobName)
	if err != nil {
		return nil, err
	}
	events = lo.Filter(events, func(e eventsv1.Event, _ int) bool {
		return e.Reason == defaults.UpgradeEventReason
	})
	if len(events) == 0 {
		return nil, ErrNoUpgradeEvent
	}
	latest := lo.MaxBy(events, func(a, b eventsv1.Event) bool {
		return eventTime(&a).After(eventTime(&b))
	})
	return &latest, nil
}

// DecodeUpgradeEvent parses the note of an upgrade event.
func DecodeUpgradeEvent(e *eventsv1.Event) (*UpgradeEvent, error) {
	if e.Note == "" {
		return nil, fmt.Errorf("No message present in upgrade event")
	}
	var ue UpgradeEvent
	if err := json.Unmarshal([]byte(e.Note), &ue); err != nil {
		return nil, fmt.Errorf("Failed to deserialize upgrade event: %w", err)
	}
	return &ue, nil
}

// EventPublisher records upgrade progress as events regarding the upgrade Job.
type EventPublisher struct {
	Client      eventCreator
	Namespace   string
	JobName     string
	PodName     string
	FromVersion string
	ToVersion   string
}

// Publish creates an upgrade event carrying action and message.
func (p *EventPublisher) Publish(ctx context.Context, action, message string) error {
	note, err := json.Marshal(UpgradeEvent{
		FromVersion: p.FromVersion,
		ToVersion:   p.ToVersion,
		Message:     message,
	})
	if err != nil {
		return err
	}
	now := time.Now()
	eventType := corev1.EventTypeNormal
	if action == ActionFailed || action == ActionValidationFailed {
		eventType = corev1.EventTypeWarning
	}
	event := &eventsv1.Event{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s.%x", p.JobName, now.UnixNano()),
			Namespace: p.Namespace,
		},
		EventTime:           metav1.NewMicroTime(now),
		ReportingController: defaults.UpgradeEventController,
		ReportingInstance:   p.PodName,
		Action:              action,
		Reason:              defaults.UpgradeEventReason,
		Regarding: corev1.ObjectReference{
			APIVersion: "batch/v1",
			Kind:       "Job",
			Name:       p.JobName,
			Namespace:  p.Namespace,
		},
		Note: string(note),
		Type: eventType,
	}
	if _, err := p.Client.CreateEvent(ctx, p.Namespace, event, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("unable to publish upgrade event %q: %w", action, err)
	}
	log.WithFields(map[string]interface{}{
		logfields.Action: action,
		logfields.Job:    p.JobName,
	}).Debug(message)
	return nil
}
