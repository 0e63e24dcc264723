// Package mocks provides centralized mock implementations for testing.
//
// Each mock keeps function fields for every method of the interface it
// stands in for. A nil field falls back to a simple in-memory behavior, so
// most tests only override the calls they want to fail or observe:
//
//	import "github.com/phrazzld/tasklink/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    links := mocks.NewMockLinkStore()
//	    links.SaveFn = func(ctx context.Context, link *domain.TaskLink) error {
//	        return store.ErrTransactionFailed
//	    }
//
//	    // Use the mock in your test...
//	}
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Assert the interface with a var _ declaration
package mocks
