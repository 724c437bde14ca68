package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	fail  error
}

func (f *fakeExec) Family(ctx context.Context, id string) error {
	f.calls = append(f.calls, "family "+id)
	return f.fail
}

func (f *fakeExec) RevokeFamily(ctx context.Context, id string) error {
	f.calls = append(f.calls, "revoke-family "+id)
	return f.fail
}

func (f *fakeExec) RevokeUser(ctx context.Context, id string) error {
	f.calls = append(f.calls, "revoke-user "+id)
	return f.fail
}

func (f *fakeExec) Sweep(ctx context.Context) error {
	f.calls = append(f.calls, "sweep")
	return f.fail
}

func TestRunREPL_DispatchesUntilExit(t *testing.T) {
	f := &fakeExec{}
	var out bytes.Buffer
	in := strings.NewReader("\nfamily f1\nrevoke-family f1\nrevoke-user u1\nsweep\nexit\nsweep\n")

	runREPL(context.Background(), f, in, &out)

	assert.Equal(t, []string{"family f1", "revoke-family f1", "revoke-user u1", "sweep"}, f.calls)
	assert.Contains(t, out.String(), "Bye!")
}

func TestRunREPL_ReportsErrorsAndContinues(t *testing.T) {
	f := &fakeExec{fail: errors.New("db down")}
	var out bytes.Buffer
	in := strings.NewReader("bogus\nsweep\nhelp\n")

	runREPL(context.Background(), f, in, &out)

	s := out.String()
	assert.Contains(t, s, `unknown command "bogus"`)
	assert.Contains(t, s, "error: db down")
	assert.Contains(t, s, helpText)
	assert.Equal(t, []string{"sweep"}, f.calls)
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	f := &fakeExec{}
	runREPL(context.Background(), f, strings.NewReader("family f2"), &bytes.Buffer{})
	assert.Equal(t, []string{"family f2"}, f.calls)
}
