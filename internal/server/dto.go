package server

import (
	"negotiator/internal/audit"
	"negotiator/internal/domain"
	"negotiator/internal/orchestrator"
)

// Request payloads

// SubmitDemandRequest is the body of POST /demand.
type SubmitDemandRequest struct {
	Demand string `json:"demand" example:"P1,P1,P3"`
}

// ApplyConfigRequest is the body of PUT /config: a nested key-value
// document merged onto the running configuration immediately; the merge is
// not deferred to the next run.
type ApplyConfigRequest map[string]any

// Response payloads

// OutcomeResponse is one negotiated outcome won by the solver's selection.
type OutcomeResponse struct {
	SellerID string              `json:"seller_id"`
	BundleID string              `json:"bundle_id"`
	Utility  float64             `json:"utility_to_buyer"`
	Issues   map[string]any      `json:"issues"`
	Items    []BundleItemResponse `json:"items"`
}

// BundleItemResponse is one (product, quantity) line of an outcome's bundle.
type BundleItemResponse struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// RunResponse reports the result of one completed (or failed) negotiation run.
type RunResponse struct {
	RunID            string            `json:"run_id,omitempty"`
	Demand           string            `json:"demand"`
	Outcomes         []OutcomeResponse `json:"outcomes,omitempty"`
	TotalUtility     float64           `json:"total_utility,omitempty"`
	SellersContacted int               `json:"sellers_contacted"`
	UnknownSymbols   []string          `json:"unknown_symbols,omitempty"`
	Error            string            `json:"error,omitempty"`
}

func outcomeResponse(o domain.Outcome) OutcomeResponse {
	items := make([]BundleItemResponse, len(o.Bid.Bundle.Items))
	for i, it := range o.Bid.Bundle.Items {
		qty := it.Quantity
		if i < len(o.Bid.Quantities) {
			qty = o.Bid.Quantities[i]
		}
		items[i] = BundleItemResponse{Product: string(it.Product), Quantity: qty}
	}
	issues := map[string]any{}
	for _, iv := range o.Bid.Issues {
		if iv.Kind == domain.Qualitative {
			issues[string(iv.Name)] = iv.Grade.String()
		} else {
			issues[string(iv.Name)] = iv.Number
		}
	}
	return OutcomeResponse{
		SellerID: o.SellerID,
		BundleID: o.Bid.Bundle.ID,
		Utility:  o.UtilityToBuyer,
		Issues:   issues,
		Items:    items,
	}
}

func runResponse(runID string, result orchestrator.RunResult) RunResponse {
	resp := RunResponse{
		RunID:            runID,
		Demand:           result.Demand,
		TotalUtility:     result.TotalUtility,
		SellersContacted: result.SellersContacted,
		UnknownSymbols:   result.UnknownSymbols,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
		return resp
	}
	resp.Outcomes = make([]OutcomeResponse, len(result.Outcomes))
	for i, o := range result.Outcomes {
		resp.Outcomes[i] = outcomeResponse(o)
	}
	return resp
}

// CatalogResponse lists the bundles every seller currently offers.
type CatalogResponse struct {
	Sellers map[string][]BundleResponse `json:"sellers"`
}

// BundleResponse is one catalog bundle.
type BundleResponse struct {
	ID         string               `json:"id"`
	Items      []BundleItemResponse `json:"items"`
	SynergyMin float64              `json:"synergy_min"`
	SynergyMax float64              `json:"synergy_max"`
	Weights    map[string]float64   `json:"weights,omitempty"`
}

func catalogResponse(sellers map[string][]domain.Bundle) CatalogResponse {
	out := make(map[string][]BundleResponse, len(sellers))
	for sellerID, bundles := range sellers {
		converted := make([]BundleResponse, len(bundles))
		for i, b := range bundles {
			items := make([]BundleItemResponse, len(b.Items))
			for j, it := range b.Items {
				items[j] = BundleItemResponse{Product: string(it.Product), Quantity: it.Quantity}
			}
			weights := make(map[string]float64, len(b.Weights))
			for name, w := range b.Weights {
				weights[string(name)] = w
			}
			converted[i] = BundleResponse{ID: b.ID, Items: items, SynergyMin: b.SynergyMin, SynergyMax: b.SynergyMax, Weights: weights}
		}
		out[sellerID] = converted
	}
	return CatalogResponse{Sellers: out}
}

// RunEventResponse is one recorded outcome event for a past run.
type RunEventResponse struct {
	SellerID   string `json:"seller_id"`
	EventType  string `json:"event_type"`
	OccurredAt string `json:"occurred_at"`
	Detail     string `json:"detail,omitempty"`
}

// RunRecordResponse is the audit record for a past run, looked up by id.
type RunRecordResponse struct {
	RunID            string              `json:"run_id"`
	Demand           string              `json:"demand"`
	StartedAt        string              `json:"started_at"`
	FinishedAt       string              `json:"finished_at"`
	SellersContacted int                 `json:"sellers_contacted"`
	OutcomesWon      int                 `json:"outcomes_won"`
	Status           string              `json:"status"`
	Error            string              `json:"error,omitempty"`
	Events           []RunEventResponse  `json:"events,omitempty"`
}

func runRecordResponse(rec audit.RunRecord) RunRecordResponse {
	resp := RunRecordResponse{
		RunID:            rec.ID,
		Demand:           rec.Demand,
		StartedAt:        rec.StartedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		FinishedAt:       rec.FinishedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		SellersContacted: rec.SellersContacted,
		OutcomesWon:      rec.OutcomesWon,
		Status:           rec.Status,
		Error:            rec.Error,
	}
	resp.Events = make([]RunEventResponse, len(rec.Events))
	for i, ev := range rec.Events {
		resp.Events[i] = RunEventResponse{
			SellerID:   ev.SellerID,
			EventType:  ev.EventType,
			OccurredAt: ev.OccurredAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
			Detail:     ev.Detail,
		}
	}
	return resp
}
