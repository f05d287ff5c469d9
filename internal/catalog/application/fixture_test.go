package application

import (
	"github.com/wyfcoding/storefront/internal/catalog/catalogtest"
)

type fixture struct {
	store     *catalogtest.MemStore
	cmd       *CatalogCommandService
	query     *CatalogQueryService
	csv       *ProductCSVService
	publisher *catalogtest.RecordingPublisher
}

func newFixture() *fixture {
	s := catalogtest.NewMemStore()
	pub := &catalogtest.RecordingPublisher{}
	products, categories, history := catalogtest.MemProducts{S: s}, catalogtest.MemCategories{S: s}, catalogtest.MemHistory{S: s}
	cmd := NewCatalogCommandService(catalogtest.PassthroughTx{}, products, categories, history, pub)
	return &fixture{
		store:     s,
		cmd:       cmd,
		query:     NewCatalogQueryService(products, categories, history),
		csv:       NewProductCSVService(cmd, products, categories),
		publisher: pub,
	}
}
