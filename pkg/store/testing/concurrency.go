package testing

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/putd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConcurrencyTests checks exclusive create under contention.
func (suite *StoreTestSuite) RunConcurrencyTests(t *testing.T) {
	t.Run("Create_SameNameRace", suite.testCreateSameNameRace)
	t.Run("Create_DistinctNames", suite.testCreateDistinctNames)
}

func (suite *StoreTestSuite) testCreateSameNameRace(t *testing.T) {
	s := suite.NewStore(t)

	const contenders = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		conflict int
		start    = make(chan struct{})
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			upload, err := s.Create(testContext(), "contested.bin")
			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				winners++
				_, werr := upload.Write([]byte(fmt.Sprintf("writer-%d", i)))
				assert.NoError(t, werr)
				assert.NoError(t, upload.Commit(testContext()))
			case errors.Is(err, store.ErrExists):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one Create must win")
	assert.Equal(t, contenders-1, conflict)
	assert.Equal(t, []string{"contested.bin"}, mustList(t, s))
}

func (suite *StoreTestSuite) testCreateDistinctNames(t *testing.T) {
	s := suite.NewStore(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			upload, err := s.Create(testContext(), fmt.Sprintf("file-%d.bin", i))
			if err != nil {
				errs <- err
				return
			}
			if _, err := upload.Write([]byte{byte(i)}); err != nil {
				errs <- err
				return
			}
			errs <- upload.Commit(testContext())
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, mustList(t, s), writers)
}
