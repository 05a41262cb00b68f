package engine

import (
	"context"
	"fmt"

	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/store"
)

const (
	backendPostgres = config.StoreBackendPostgres
	backendMemory   = config.StoreBackendMemory
)

// One collection per entity type
type stores struct {
	parties   store.Collection[model.Party]
	tenders   store.Collection[model.Tender]
	bids      store.Collection[model.Bid]
	invoices  store.Collection[model.Invoice]
	employees store.Collection[model.Employee]
	records   store.Collection[model.SettlementRecord]
}

func newStores(ctx context.Context, config *config.Config) (*stores, error) {
	switch config.Store.Backend {
	case "", backendPostgres:
		db, err := model.NewConnection(ctx, config, "shadowlink")
		if err != nil {
			return nil, err
		}
		return &stores{
			parties:   store.NewGorm[model.Party](db).WithKey("address"),
			tenders:   store.NewGorm[model.Tender](db),
			bids:      store.NewGorm[model.Bid](db),
			invoices:  store.NewGorm[model.Invoice](db),
			employees: store.NewGorm[model.Employee](db),
			records:   store.NewGorm[model.SettlementRecord](db).WithOrder("timestamp"),
		}, nil

	case backendMemory:
		return &stores{
			parties:   store.NewMemory[model.Party]().WithKey("address"),
			tenders:   store.NewMemory[model.Tender](),
			bids:      store.NewMemory[model.Bid]().WithUnique("tender_id", "bidder"),
			invoices:  store.NewMemory[model.Invoice]().WithUnique("number"),
			employees: store.NewMemory[model.Employee](),
			records:   store.NewMemory[model.SettlementRecord](),
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend: %s", config.Store.Backend)
}
