package finalizer

import (
	"context"
	"fmt"
	"io"
)

// Finalizer collects io.Closers and closes them in reverse order, so later
// resources are torn down before the ones they depend on.
type Finalizer struct {
	closers []io.Closer
}

// NewFinalizer returns an empty Finalizer.
func NewFinalizer() *Finalizer {
	return &Finalizer{}
}

// Add appends closers to the finalization list.
func (f *Finalizer) Add(closers ...io.Closer) {
	f.closers = append(f.closers, closers...)
}

// AddFn appends plain functions to the finalization list.
func (f *Finalizer) AddFn(fns ...func()) {
	for _, fn := range fns {
		f.closers = append(f.closers, &fnCloser{fn: fn})
	}
}

// Cleanup closes everything collected so far and returns err wrapped with
// any close errors encountered.
func (f *Finalizer) Cleanup(err error) error {
	for i := len(f.closers) - 1; i >= 0; i-- {
		if cerr := f.closers[i].Close(); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				err = fmt.Errorf("%v; closing resource: %v", err, cerr)
			}
		}
	}
	return err
}

// Cleanupf is like Cleanup but wraps a non-nil err with format.
func (f *Finalizer) Cleanupf(format string, err error) error {
	if err != nil {
		err = fmt.Errorf(format, err)
	}
	return f.Cleanup(err)
}

// NewContextCloser wraps a context cancel func as an io.Closer.
func NewContextCloser(cancel context.CancelFunc) io.Closer {
	return &contextCloser{cancel: cancel}
}

type contextCloser struct {
	cancel context.CancelFunc
}

func (c *contextCloser) Close() error {
	c.cancel()
	return nil
}

type fnCloser struct {
	fn func()
}

func (c *fnCloser) Close() error {
	c.fn()
	return nil
}
