// Licensed under the MIT License.

package userutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameIsValid(t *testing.T) {
	assert.NoError(t, NameIsValid("ubuntu"))
	assert.NoError(t, NameIsValid("_svc"))
	assert.NoError(t, NameIsValid("live-user"))
	assert.NoError(t, NameIsValid("user2"))
}

func TestNameIsValidRejectsBadNames(t *testing.T) {
	assert.Error(t, NameIsValid(""))
	assert.Error(t, NameIsValid("Ubuntu"))
	assert.Error(t, NameIsValid("2user"))
	assert.Error(t, NameIsValid("user name"))
	assert.Error(t, NameIsValid(strings.Repeat("a", 33)))
}

func TestUIDIsValid(t *testing.T) {
	assert.NoError(t, UIDIsValid(1000))
	assert.NoError(t, UIDIsValid(60000))

	assert.Error(t, UIDIsValid(0))
	assert.Error(t, UIDIsValid(999))
	assert.Error(t, UIDIsValid(60001))
}
