// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) {
	TestingT(t)
}

type LoggingSuite struct{}

var _ = Suite(&LoggingSuite{})

func (s *LoggingSuite) TestGetLogLevel(c *C) {
	opts := LogOptions{}
	c.Assert(opts.GetLogLevel(), Equals, DefaultLogLevel)

	// case doesn't matter with log options
	opts[LevelOpt] = "DeBuG"
	c.Assert(opts.GetLogLevel(), Equals, logrus.DebugLevel)

	opts[LevelOpt] = "Invalid"
	c.Assert(opts.GetLogLevel(), Equals, DefaultLogLevel)
}

func (s *LoggingSuite) TestGetLogFormat(c *C) {
	opts := LogOptions{}

	// case doesn't matter with log options
	opts[FormatOpt] = "JsOn"
	c.Assert(opts.GetLogFormat(), Equals, LogFormatJSON)

	opts[FormatOpt] = "Invalid"
	c.Assert(opts.GetLogFormat(), Equals, DefaultLogFormat)
}

func (s *LoggingSuite) TestSetLogLevel(c *C) {
	oldLevel := DefaultLogger.GetLevel()
	defer DefaultLogger.SetLevel(oldLevel)

	SetLogLevel(logrus.TraceLevel)
	c.Assert(DefaultLogger.GetLevel(), Equals, logrus.TraceLevel)

	SetLogLevel(DefaultLogLevel)
	c.Assert(DefaultLogger.GetLevel(), Equals, DefaultLogLevel)
}

func (s *LoggingSuite) TestLogOptionsFromEnv(c *C) {
	c.Assert(LogOptionsFromEnv("OPENEBS_TEST_UNSET_LOG_LEVEL"), DeepEquals, LogOptions{})
}

func (s *LoggingSuite) TestSetupLogging(c *C) {
	oldLevel := DefaultLogger.GetLevel()
	oldOut := DefaultLogger.Out
	defer func() {
		DefaultLogger.SetLevel(oldLevel)
		DefaultLogger.SetOutput(oldOut)
		SetLogFormat(DefaultLogFormat)
	}()

	var buf bytes.Buffer
	SetupLogging(LogOptions{LevelOpt: "warn", FormatOpt: "json"}, &buf)
	c.Assert(DefaultLogger.GetLevel(), Equals, logrus.WarnLevel)

	DefaultLogger.Info("dropped")
	c.Assert(buf.Len(), Equals, 0)

	DefaultLogger.Warn("kept")
	c.Assert(bytes.Contains(buf.Bytes(), []byte(`"msg":"kept"`)), Equals, true)
}
