// Package kongtest renders and parses kong command lines in tests without exiting the
// test binary.
package kongtest

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

type exit int

// Help returns the --help output of cli, asserting that kong asked to exit cleanly.
// Parsing is abandoned at the exit, so required flags and commands do not fail it.
func Help(t *testing.T, cli interface{}, options ...kong.Option) string {
	t.Helper()
	w := &bytes.Buffer{}
	rc := -1
	app := newApp(t, cli, w, &rc, append(options, kong.Exit(func(i int) {
		panic(exit(i))
	}))...)

	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			code, ok := r.(exit)
			if !ok {
				panic(r)
			}
			rc = int(code)
		}()
		_, err := app.Parse([]string{"--help"})
		assert.Check(t, err)
	}()
	assert.Check(t, cmp.Equal(rc, 0))

	return w.String()
}

// Parse parses args into cli, returning the selected command's context.
func Parse(t *testing.T, cli interface{}, args []string, options ...kong.Option) (*kong.Context, error) {
	t.Helper()
	w := &bytes.Buffer{}
	rc := -1
	app := newApp(t, cli, w, &rc, options...)
	return app.Parse(args)
}

func newApp(t *testing.T, cli interface{}, w *bytes.Buffer, rc *int, options ...kong.Option) *kong.Kong {
	t.Helper()
	opts := append([]kong.Option{
		kong.Name("test-app"),
		kong.Writers(w, w),
		kong.Exit(func(i int) {
			*rc = i
		}),
	}, options...)
	app, err := kong.New(cli, opts...)
	assert.NilError(t, err)
	return app
}
