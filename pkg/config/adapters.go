package config

import (
	"fmt"

	"github.com/marmos91/putd/pkg/adapter"
	"github.com/marmos91/putd/pkg/adapter/put"
	"github.com/marmos91/putd/pkg/journal"
	"github.com/marmos91/putd/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete putd configuration
//   - putMetrics: Optional PUT metrics collector (nil = no metrics)
//   - sink: Transfer journal shared by the adapters (nil = no journal)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, putMetrics metrics.PutMetrics, sink journal.Sink) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Put.Enabled {
		putAdapter := put.New(cfg.Adapters.Put, putMetrics)
		putAdapter.SetJournal(sink)
		adapters = append(adapters, putAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
