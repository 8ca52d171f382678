package sse

import (
	"time"

	"github.com/GTDGit/garimpo_api/internal/models"
)

// CatalogNotifier is the interface the catalog uses to emit change events.
type CatalogNotifier interface {
	NotifyProductSaved(p *models.Product, localOnly bool)
	NotifyProductDeleted(id string, localOnly bool)
	NotifyCatalogLoaded(count int, localOnly bool)
}

// HubNotifier implements CatalogNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifyProductSaved(p *models.Product, localOnly bool) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&CatalogEvent{
		Event:     EventProductSaved,
		ProductID: p.ID,
		Name:      p.Name,
		Stage:     p.Stage(),
		Viability: string(p.FinancialAnalysis.ViabilityStatus),
		LocalOnly: localOnly,
		Timestamp: n.now(),
	})
}

func (n *HubNotifier) NotifyProductDeleted(id string, localOnly bool) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&CatalogEvent{Event: EventProductDeleted, ProductID: id, LocalOnly: localOnly, Timestamp: n.now()})
}

func (n *HubNotifier) NotifyCatalogLoaded(count int, localOnly bool) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&CatalogEvent{Event: EventCatalogLoaded, Count: count, LocalOnly: localOnly, Timestamp: n.now()})
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (NopNotifier) NotifyProductSaved(*models.Product, bool) {}
func (NopNotifier) NotifyProductDeleted(string, bool)        {}
func (NopNotifier) NotifyCatalogLoaded(int, bool)            {}
