package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-collection-sync/core"
)

var (
	_ gocmd.Querier[GetQueueStatsMessage, core.QueueStats]            = (*GetQueueStatsQuery)(nil)
	_ gocmd.Querier[ListDeliveryAuditMessage, []core.DeliveryAttempt] = (*ListDeliveryAuditQuery)(nil)
	_ gocmd.Querier[ListScrapeActivityMessage, []core.ScrapeActivity] = (*ListScrapeActivityQuery)(nil)
)
