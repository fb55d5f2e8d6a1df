package handler

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the inventory API on r. Authentication is applied by the
// caller.
func Mount(r chi.Router, ledger *LedgerHandler, counts *CountHandler) {
	r.Get("/locations", ledger.ListLocations)

	r.Route("/levels", func(r chi.Router) {
		r.Get("/", ledger.ListLevels)
		r.Get("/{productID}/{locationID}", ledger.GetLevel)
		r.Put("/{productID}/{locationID}", ledger.SetLevel)
	})
	r.Post("/transfers", ledger.Transfer)
	r.Post("/adjustments", ledger.Adjust)
	r.Get("/movements", ledger.ListMovements)

	r.Route("/counts", func(r chi.Router) {
		r.Get("/", counts.ListCounts)
		r.Post("/", counts.CreateCount)
		r.Route("/{countID}", func(r chi.Router) {
			r.Get("/", counts.GetCount)
			r.Delete("/", counts.DeleteCount)
			r.Patch("/status", counts.UpdateStatus)
			r.Post("/approve", counts.Approve)
			r.Post("/reapply", counts.Reapply)
			r.Get("/report", counts.Report)
			r.Get("/areas", counts.ListAreas)
			r.Post("/areas", counts.AddArea)
			r.Put("/areas/order", counts.ReorderAreas)
		})
	})

	r.Route("/areas/{areaID}", func(r chi.Router) {
		r.Patch("/", counts.UpdateArea)
		r.Delete("/", counts.DeleteArea)
		r.Post("/items", counts.SubmitItem)
	})
	r.Delete("/items/{itemID}", counts.DeleteItem)
}
