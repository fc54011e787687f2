package metrics

import "expvar"

var (
	EventsDecoded    = expvar.NewInt("events_decoded")
	EventsSubmitted  = expvar.NewInt("events_submitted")
	OrdersPosted     = expvar.NewInt("orders_posted")
	OrdersBlocked    = expvar.NewInt("orders_blocked")
	ResubmitsQueued  = expvar.NewInt("resubmits_queued")
	ReconnectCount   = expvar.NewInt("ws_reconnects")
	AuditRowsWritten = expvar.NewInt("audit_rows_written")
)
