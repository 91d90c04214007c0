package factory

import (
	"fmt"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	"github.com/anime-shed/image-forensics-go/internal/config"
	"github.com/anime-shed/image-forensics-go/internal/storage"
	"github.com/anime-shed/image-forensics-go/internal/strategy"
)

// StrategyFactory creates pixel transform strategies by name
type StrategyFactory interface {
	CreateStrategy(name string) (strategy.TransformStrategy, error)
	CreateStrategies(names []string) ([]strategy.TransformStrategy, error)
}

// SourceFactory creates the remote image backends
type SourceFactory interface {
	CreateFetcher() storage.ImageFetcher
	// CreateBlobStorage returns nil when no Azure credentials are configured
	CreateBlobStorage() (storage.BlobStorage, error)
}

// strategyFactory implements StrategyFactory
type strategyFactory struct {
	cfg config.ForensicsConfig
}

// NewStrategyFactory creates a strategy factory for the given settings
func NewStrategyFactory(cfg config.ForensicsConfig) StrategyFactory {
	return &strategyFactory{cfg: cfg}
}

// CreateStrategy creates the transform registered under name
func (f *strategyFactory) CreateStrategy(name string) (strategy.TransformStrategy, error) {
	switch name {
	case config.TransformEdges:
		return strategy.NewEdgeStrategy(analyzer.NewEdgeDetector()), nil
	case config.TransformELA:
		return strategy.NewErrorLevelStrategy(analyzer.NewErrorLevelAnalyzer(f.cfg.TempDir)), nil
	case config.TransformClones:
		return strategy.NewCloneStrategy(analyzer.NewCloneFinder(f.cfg.CloneBlockSize)), nil
	default:
		return nil, fmt.Errorf("unsupported transform: %s", name)
	}
}

// CreateStrategies creates transforms in the given order, skipping duplicates
func (f *strategyFactory) CreateStrategies(names []string) ([]strategy.TransformStrategy, error) {
	seen := make(map[string]bool, len(names))
	strategies := make([]strategy.TransformStrategy, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		s, err := f.CreateStrategy(name)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// sourceFactory implements SourceFactory
type sourceFactory struct {
	cfg *config.Config
}

// NewSourceFactory creates a source factory
func NewSourceFactory(cfg *config.Config) SourceFactory {
	return &sourceFactory{cfg: cfg}
}

// CreateFetcher creates the HTTP(S) fetcher, capped at the request body size
func (f *sourceFactory) CreateFetcher() storage.ImageFetcher {
	return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout, storage.WithMaxBytes(f.cfg.MaxRequestBodySize))
}

// CreateBlobStorage creates the Azure client for azblob:// references
func (f *sourceFactory) CreateBlobStorage() (storage.BlobStorage, error) {
	az := f.cfg.Azure
	if az.AccountName == "" || az.AccountKey == "" {
		return nil, nil
	}
	blobs, err := storage.NewAzureStorage(az.AccountName, az.AccountKey, f.cfg.MaxRequestBodySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure storage client: %w", err)
	}
	return blobs, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StrategyFactory StrategyFactory
	SourceFactory   SourceFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		StrategyFactory: NewStrategyFactory(cfg.Forensics),
		SourceFactory:   NewSourceFactory(cfg),
	}
}
