package compiler

import (
	"context"
	"os"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/icmd"
)

func TestCompiler_Compile(t *testing.T) {
	c := New()

	binary := ""
	t.Cleanup(func() {
		c.Cleanup()
		_, err := os.Stat(binary)
		assert.Check(t, os.IsNotExist(err))
	})

	assert.Assert(t, t.Run("Compile binary", func(t *testing.T) {
		var err error
		binary, err = c.Compile(context.Background(), Work{
			Name:        "name",
			Target:      "../..",
			Source:      "./testing/compiler/internal/cmd",
			Environment: []string{"GOFLAGS=-trimpath"},
		})
		assert.Assert(t, err)
		_, err = os.Stat(binary)
		assert.Check(t, err)
	}))

	t.Run("Run binary", func(t *testing.T) {
		cmd := icmd.Command(binary, "arg1", "arg2")
		res := icmd.RunCmd(cmd, icmd.WithEnv("FOO=foo"))
		assert.Check(t, res.Equal(icmd.Expected{
			Out: "foo: [arg1 arg2]",
		}))
	})
}

func TestCompiler_CompileAll(t *testing.T) {
	c := New()
	t.Cleanup(c.Cleanup)

	var one, two string
	err := c.CompileAll(context.Background(),
		Work{Name: "one", Target: "../..", Source: "./testing/compiler/internal/cmd", Result: &one},
		Work{Name: "two", Target: "../..", Source: "./testing/compiler/internal/cmd", Result: &two},
	)
	assert.Assert(t, err)
	assert.Check(t, one != two)

	for _, bin := range []string{one, two} {
		res := icmd.RunCommand(bin)
		assert.Check(t, res.Equal(icmd.Expected{Out: ": []"}))
	}
}
