// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package dump

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cilium/workerpool"
	archiver "github.com/mholt/archiver/v3"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const (
	DefaultNamespace            = "openebs"
	DefaultOutputDirectory      = "./"
	DefaultOutputFileName       = "openebs-" + timestampPlaceholderFileName
	DefaultSince                = 24 * time.Hour
	DefaultTimeout              = 10 * time.Second
	DefaultLoggingLabelSelector = "openebs.io/logging=true"
	DefaultWorkerCount          = 5
	DefaultLogsLimitBytes       = int64(1073741824)
	DefaultDebug                = false

	timestampPlaceholderFileName = "<ts>"
	timeFormat                   = "2006-01-02--15-04-05-UTC"
)

// DefaultWriter is used when Options.Writer is nil.
var DefaultWriter io.Writer = os.Stdout

// Options groups together the set of options required to collect a dump.
type Options struct {
	// The namespace openebs is running in.
	Namespace string
	// The directory the archive is written to.
	OutputDirectory string
	// The name of the archive without extension. '<ts>' is replaced with the
	// collection start time.
	OutputFileName string
	// How far back in time to go when collecting logs.
	Since time.Duration
	// Timeout of each request to the Kubernetes API.
	Timeout time.Duration
	// The labels used to target pods whose logs are collected.
	LoggingLabelSelector string
	DisableLogCollection bool
	// The limit on the number of bytes to retrieve when collecting logs.
	LogsLimitBytes int64
	WorkerCount    int
	Debug          bool
	// The writer used for logging.
	Writer io.Writer
}

// Task defines a task for the dump collector to execute.
type Task struct {
	// MUST be set to true if the task submits additional tasks to the worker pool.
	CreatesSubtasks bool
	Description     string
	// Logs marks tasks that are skipped when log collection is disabled.
	Logs bool
	Task func(context.Context) error
}

// Collector collects the state of an openebs installation into a tar archive.
type Collector struct {
	Client  KubernetesClient
	Options Options
	Pool    *workerpool.WorkerPool
	// subtasksWg is used to wait for subtasks to be submitted to the pool
	// before calling 'Drain'.
	subtasksWg sync.WaitGroup
	startTime  time.Time
	// Directory the dump is collected in before being archived.
	dumpDir     string
	archivePath string
	logMu       sync.Mutex
}

// NewCollector returns a new dump collector.
func NewCollector(k KubernetesClient, o Options, startTime time.Time) (*Collector, error) {
	if o.Writer == nil {
		o.Writer = DefaultWriter
	}
	c := Collector{
		Client:    k,
		Options:   o,
		startTime: startTime,
	}
	tmp, err := os.MkdirTemp("", "openebs-dump-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	c.dumpDir = filepath.Join(tmp, c.replaceTimestamp(c.Options.OutputFileName))
	if err = os.MkdirAll(c.dumpDir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	c.archivePath = filepath.Join(c.Options.OutputDirectory, c.replaceTimestamp(c.Options.OutputFileName)+".tar")
	c.logDebug("Using %v as a temporary directory", c.dumpDir)
	return &c, nil
}

func (c *Collector) replaceTimestamp(f string) string {
	return strings.ReplaceAll(f, timestampPlaceholderFileName, c.startTime.UTC().Format(timeFormat))
}

// ArchivePath returns the path of the archive Run produces.
func (c *Collector) ArchivePath() string {
	return c.archivePath
}

// AbsoluteTempPath returns the absolute path where to store the specified filename temporarily.
func (c *Collector) AbsoluteTempPath(f string) string {
	return filepath.Join(c.dumpDir, c.replaceTimestamp(f))
}

// WriteYAML writes a kubernetes object to a file as YAML.
func (c *Collector) WriteYAML(filename string, o runtime.Object) error {
	return writeYaml(c.AbsoluteTempPath(filename), o)
}

// WriteList writes a kubernetes list as YAML, unless it has no items.
func (c *Collector) WriteList(filename string, l runtime.Object) error {
	if meta.LenList(l) == 0 {
		c.logDebug("Nothing to write to %s", filename)
		return nil
	}
	return c.WriteYAML(filename, l)
}

// WriteString writes a string to a file.
func (c *Collector) WriteString(filename string, value string) error {
	return writeString(c.AbsoluteTempPath(filename), value)
}

// requestContext bounds a single API request by Options.Timeout.
func (c *Collector) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Options.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Options.Timeout)
}

// Run collects the dump and writes the archive. Tasks that fail are reported
// in the returned error, after the archive of everything else was written.
// Tasks not yet started when ctx is cancelled fail with its error.
func (c *Collector) Run(ctx context.Context) error {
	tasks := c.commonTasks()
	tasks = append(tasks, c.logsTask())
	tasks = append(tasks, c.mayastorTasks()...)
	tasks = append(tasks, c.zfsTasks()...)
	tasks = append(tasks, c.lvmTasks()...)

	// Submit blocks, so every task that submits sub-tasks needs a worker of its own.
	wc := 1
	for _, t := range tasks {
		if t.CreatesSubtasks && !c.shouldSkipTask(t) {
			wc++
		}
	}
	if wc < c.Options.WorkerCount {
		wc = c.Options.WorkerCount
	}
	c.Pool = workerpool.New(wc)
	c.logDebug("Using %d workers (requested: %d)", wc, c.Options.WorkerCount)

	for i, t := range tasks {
		t := t
		if c.shouldSkipTask(t) {
			c.logDebug("Skipping %q", t.Description)
			continue
		}
		if t.CreatesSubtasks {
			c.subtasksWg.Add(1)
		}
		if err := c.Pool.Submit(fmt.Sprintf("[%d] %s", i, t.Description), func(context.Context) error {
			if t.CreatesSubtasks {
				defer c.subtasksWg.Done()
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			c.logTask(t.Description)
			defer c.logDebug("Finished %q", t.Description)
			return t.Task(ctx)
		}); err != nil {
			return fmt.Errorf("failed to submit task to the worker pool: %w", err)
		}
	}

	c.subtasksWg.Wait()
	r, err := c.Pool.Drain()
	if err != nil {
		return fmt.Errorf("failed to drain the worker pool: %w", err)
	}
	if err := c.Pool.Close(); err != nil {
		return fmt.Errorf("failed to close the worker pool: %w", err)
	}

	var errs []error
	for _, res := range r {
		if err := res.Err(); err != nil {
			if len(errs) == 0 {
				c.logWarn("The following tasks failed, the dump may be incomplete:")
			}
			c.logWarn("%s: %v", res.String(), err)
			errs = append(errs, fmt.Errorf("%s: %w", res.String(), err))
		}
	}

	c.log("🗳 Compiling dump")
	if err := archiver.Archive([]string{c.dumpDir}, c.archivePath); err != nil {
		c.logWarn("Failed to copy content to archive: %v", err)
		errs = append(errs, fmt.Errorf("failed to create archive %s: %w", c.archivePath, err))
	} else {
		c.log("✅ The dump has been saved to %s", c.archivePath)
	}

	c.logDebug("Removing the temporary directory %s", c.dumpDir)
	if err := os.RemoveAll(filepath.Dir(c.dumpDir)); err != nil {
		c.logWarn("failed to remove temporary directory %s: %v", c.dumpDir, err)
	}

	if len(errs) > 0 {
		c.log("Failed to dump system state")
		return utilerrors.NewAggregate(errs)
	}
	c.log("Completed collection of dump !!")
	return nil
}

func (c *Collector) log(msg string, args ...interface{}) {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	fmt.Fprintf(c.Options.Writer, msg+"\n", args...)
}

func (c *Collector) logDebug(msg string, args ...interface{}) {
	if c.Options.Debug {
		c.log("🩺 "+msg, args...)
	}
}

func (c *Collector) logTask(msg string, args ...interface{}) {
	c.log("🔍 "+msg, args...)
}

func (c *Collector) logWarn(msg string, args ...interface{}) {
	c.log("⚠️ "+msg, args...)
}

func (c *Collector) shouldSkipTask(t Task) bool {
	return c.Options.DisableLogCollection && t.Logs
}
