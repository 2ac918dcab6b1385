package ioutils

import "io"

// Borrowed from https://github.com/docker/docker/blob/master/pkg/ioutils/writers.go

type writeCloserWrapper struct {
	io.Writer
	closer func() error
}

func (r *writeCloserWrapper) Close() error {
	return r.closer()
}

// NewWriteCloserWrapper returns an io.WriteCloser that writes through to
// w and runs closer on Close.
func NewWriteCloserWrapper(w io.Writer, closer func() error) io.WriteCloser {
	return &writeCloserWrapper{
		Writer: w,
		closer: closer,
	}
}
