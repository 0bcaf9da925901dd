package testing

import (
	"context"
	"testing"

	"github.com/marmos91/putd/pkg/store"
)

// StoreTestSuite is a contract test suite for store.Store implementations.
// It tests the interface contract, not implementation details, so every
// backend (memory, filesystem, S3) runs the same checks.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.Store {
//	            return mystore.New(...)
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty Store for each test.
	NewStore func(t *testing.T) store.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("UploadLifecycle", suite.RunUploadTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
}

func testContext() context.Context {
	return context.Background()
}
