// Package di provides dependency injection container
package di

import (
	"io"

	"github.com/ssargent/snapshotetl/pkg/sink"
	"github.com/ssargent/snapshotetl/pkg/source"
)

// SinkFactory opens a destination store
type SinkFactory func(backend, path string) (sink.Sink, error)

// SourceFactory builds the container sequence for a run
type SourceFactory func(dir, manifestPath string) (source.Sequence, error)

// Container holds all the dependencies for the application
type Container struct {
	sinkFactory   SinkFactory
	sourceFactory SourceFactory
	out           io.Writer
}

// NewContainer creates a new dependency injection container
func NewContainer(out io.Writer) *Container {
	return &Container{
		sinkFactory:   sink.Open,
		sourceFactory: DirSource,
		out:           out,
	}
}

// DirSource lists the containers of dir, sized by the manifest when one is given
func DirSource(dir, manifestPath string) (source.Sequence, error) {
	var manifest *source.Manifest
	if manifestPath != "" {
		m, err := source.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		manifest = m
	}
	return source.Dir(dir, manifest, manifestPath)
}

// GetSinkFactory returns the sink factory
func (c *Container) GetSinkFactory() SinkFactory {
	return c.sinkFactory
}

// SetSinkFactory allows overriding the sink factory (for testing)
func (c *Container) SetSinkFactory(factory SinkFactory) {
	c.sinkFactory = factory
}

// GetSourceFactory returns the source factory
func (c *Container) GetSourceFactory() SourceFactory {
	return c.sourceFactory
}

// SetSourceFactory allows overriding the source factory (for testing)
func (c *Container) SetSourceFactory(factory SourceFactory) {
	c.sourceFactory = factory
}

// GetLogOutput returns the writer logs are sent to
func (c *Container) GetLogOutput() io.Writer {
	return c.out
}
