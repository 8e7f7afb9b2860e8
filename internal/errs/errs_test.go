package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := NotFound("getBranch", "branch", "b1")
	wrapped := fmt.Errorf("session: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindValidation))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := Gateway("embed", errors.New("connection refused"))
	assert.Equal(t, "gateway: embed: connection refused", err.Error())
	assert.ErrorContains(t, Validation("addThought", "content is empty"), "validation: addThought: content is empty")
}

func TestOrEmptySwallowsFailure(t *testing.T) {
	got := OrEmpty(zap.NewNop(), "load", func() ([]string, error) {
		return []string{"x"}, errors.New("disk gone")
	})
	assert.Nil(t, got)

	got = OrEmpty(zap.NewNop(), "load", func() ([]string, error) { return []string{"x"}, nil })
	assert.Equal(t, []string{"x"}, got)
}

func TestTryRunsFunction(t *testing.T) {
	called := false
	Try(nil, "save", func() error { called = true; return errors.New("nope") })
	assert.True(t, called)
}
