// Package logging builds the process logger and drains the shared log
// queue that shard workers write trade lines into.
package logging

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Level  string // logrus level name
	Format string // "json" or "text"
	Out    io.Writer
}

func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)

	switch opts.Format {
	case "", "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Newf("logging: unknown format %q", opts.Format)
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(opts.Level); err != nil {
			return nil, errors.Wrap(err, "logging")
		}
	}
	log.SetLevel(level)
	return log, nil
}
