package testing

import (
	"testing"

	"github.com/marmos91/putd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes listing, lookup and removal tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("List_Empty", suite.testListEmpty)
	t.Run("List_Sorted", suite.testListSorted)
	t.Run("Exists", suite.testExists)
	t.Run("Open_NotFound", suite.testOpenNotFound)
	t.Run("Size_NotFound", suite.testSizeNotFound)
	t.Run("Remove", suite.testRemove)
	t.Run("Remove_Idempotent", suite.testRemoveIdempotent)
	t.Run("InvalidNames", suite.testInvalidNames)
	t.Run("Healthcheck", suite.testHealthcheck)
}

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	s := suite.NewStore(t)
	assert.Empty(t, mustList(t, s))
}

func (suite *StoreTestSuite) testListSorted(t *testing.T) {
	s := suite.NewStore(t)

	mustPut(t, s, "charlie.txt", []byte("c"))
	mustPut(t, s, "alpha.txt", []byte("a"))
	mustPut(t, s, "bravo.txt", []byte("b"))

	assert.Equal(t, []string{"alpha.txt", "bravo.txt", "charlie.txt"}, mustList(t, s))
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	s := suite.NewStore(t)

	assertExists(t, s, "present.txt", false)
	mustPut(t, s, "present.txt", []byte("here"))
	assertExists(t, s, "present.txt", true)
}

func (suite *StoreTestSuite) testOpenNotFound(t *testing.T) {
	s := suite.NewStore(t)

	_, err := s.Open(testContext(), "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func (suite *StoreTestSuite) testSizeNotFound(t *testing.T) {
	s := suite.NewStore(t)

	_, err := s.Size(testContext(), "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func (suite *StoreTestSuite) testRemove(t *testing.T) {
	s := suite.NewStore(t)

	mustPut(t, s, "gone.txt", []byte("bye"))
	require.NoError(t, s.Remove(testContext(), "gone.txt"))

	assertExists(t, s, "gone.txt", false)
	assert.Empty(t, mustList(t, s))
}

func (suite *StoreTestSuite) testRemoveIdempotent(t *testing.T) {
	s := suite.NewStore(t)
	assert.NoError(t, s.Remove(testContext(), "never-existed.txt"))
}

func (suite *StoreTestSuite) testInvalidNames(t *testing.T) {
	s := suite.NewStore(t)

	for _, name := range []string{"", ".", "..", "../escape", "dir/file", `dir\file`, "nul\x00byte"} {
		_, err := s.Create(testContext(), name)
		assert.ErrorIs(t, err, store.ErrInvalidName, "name %q", name)
	}
	assert.Empty(t, mustList(t, s))
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	s := suite.NewStore(t)

	require.NoError(t, s.Healthcheck(testContext()))
	assert.Empty(t, mustList(t, s), "health probes must not show up in listings")
}
