package sqlstore

import "github.com/goliatone/go-collection-sync/core"

var (
	_ core.DeliveryAuditStore     = (*DeliveryAuditStore)(nil)
	_ core.DeliveryAuditStore     = (*CachedDeliveryAuditStore)(nil)
	_ core.ActivityStore          = (*ActivityStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
