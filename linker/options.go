package linker

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/cmrt/fclink/depgraph"
	"github.com/cmrt/fclink/platform"
)

var (
	// Unresolved symbols, binary / kernel count mismatch, binaries without
	// entry symbols, and relocation targets without placement.
	ErrLinkage = errors.New("linkage error")

	// The caller supplied output buffer is too small.  The returned error is
	// a *NoBufsError carrying the required size.
	ErrNoBufs = errors.New("output buffer too small")

	// The policy 2 dependency resolver failed (or is missing).
	ErrResolver = errors.New("dependency resolver failed")
)

type NoBufsError struct {
	Required int
	Provided int
}

func (err *NoBufsError) Error() string {
	return fmt.Sprintf(
		"%s: required %d bytes, provided %d",
		ErrNoBufs,
		err.Required,
		err.Provided)
}

func (err *NoBufsError) Cause() error {
	return ErrNoBufs
}

func linkageError(template string, args ...interface{}) error {
	return errors.Wrapf(ErrLinkage, template, args...)
}

// External, architecture specific dependency resolution applied to the whole
// linked buffer under depgraph.Policy2.
type DependencyResolver interface {
	Resolve(id platform.ID, linked []byte) ([]byte, error)
}

type DependencyResolverFunc func(platform.ID, []byte) ([]byte, error)

func (f DependencyResolverFunc) Resolve(
	id platform.ID,
	linked []byte,
) (
	[]byte,
	error,
) {
	return f(id, linked)
}

type Options struct {
	Policy depgraph.Policy

	// When set, every kernel's patch info must target this platform.
	Platform platform.ID

	// Required by depgraph.Policy2.
	Resolver DependencyResolver

	// Optional.  Receives the resolved dependency graph dump.
	Debug io.Writer
}

func DefaultOptions() Options {
	return Options{
		Policy: depgraph.Policy1,
	}
}

// Parses the colon delimited option string.  "p0", "p1" and "p2" select the
// swsb policy (the last one wins); every other field is ignored.  The policy
// defaults to depgraph.Policy1.
func ParseOptions(options string) Options {
	result := DefaultOptions()
	for _, field := range strings.Split(options, ":") {
		policy, err := depgraph.ParsePolicy(strings.TrimSpace(field))
		if err == nil {
			result.Policy = policy
		}
	}
	return result
}
