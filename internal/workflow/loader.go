package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"seaprocure/internal/models"
	"seaprocure/internal/query"
	"seaprocure/internal/result"
)

// Reader is the read side of the procurement API.
type Reader interface {
	GetRFQ(ctx context.Context, id string) (*models.RFQ, error)
	GetQuotationForRFQ(ctx context.Context, rfqID string) result.Lookup[models.Quotation]
	GetBankingDetails(ctx context.Context, quotationID string) result.Lookup[models.BankingDetails]
	GetPaymentProof(ctx context.Context, quotationID string) result.Lookup[models.PaymentProof]
}

// Loader fetches a Snapshot through the query cache.
type Loader struct {
	API   Reader
	Cache *query.Cache
}

func NewLoader(api Reader, cache *query.Cache) *Loader {
	if cache == nil {
		cache = query.NewCache(0)
	}
	return &Loader{API: api, Cache: cache}
}

// Load fetches the RFQ and its quotation, then banking details and payment
// proof together once the quotation is finalized. Only a failed RFQ fetch
// is returned as an error; failed lookups stay in the snapshot.
func (l *Loader) Load(ctx context.Context, rfqID string) (Snapshot, error) {
	var snap Snapshot

	rfq, err := query.Fetch(ctx, l.Cache, query.RFQKey(rfqID), func(ctx context.Context) (*models.RFQ, error) {
		return l.API.GetRFQ(ctx, rfqID)
	})
	if err != nil {
		return snap, fmt.Errorf("loading %s: %w", rfqID, err)
	}
	snap.RFQ = rfq

	snap.Quotation = query.FetchLookup(ctx, l.Cache, query.QuotationForRFQKey(rfqID), func(ctx context.Context) result.Lookup[models.Quotation] {
		return l.API.GetQuotationForRFQ(ctx, rfqID)
	})
	if !snap.Quotation.IsPresent() || snap.Quotation.Value.Status != models.QuotationStatusFinalized {
		return snap, nil
	}

	qid := snap.Quotation.Value.ID
	var g errgroup.Group
	g.Go(func() error {
		snap.Banking = query.FetchLookup(ctx, l.Cache, query.BankingKey(qid), func(ctx context.Context) result.Lookup[models.BankingDetails] {
			return l.API.GetBankingDetails(ctx, qid)
		})
		return nil
	})
	g.Go(func() error {
		snap.Proof = query.FetchLookup(ctx, l.Cache, query.PaymentProofKey(qid), func(ctx context.Context) result.Lookup[models.PaymentProof] {
			return l.API.GetPaymentProof(ctx, qid)
		})
		return nil
	})
	g.Wait()
	return snap, nil
}

// Keys lists the cache keys a snapshot of rfqID depends on.
func Keys(rfqID, quotationID string) []string {
	keys := []string{query.RFQKey(rfqID), query.QuotationForRFQKey(rfqID)}
	if quotationID != "" {
		keys = append(keys, query.BankingKey(quotationID), query.PaymentProofKey(quotationID))
	}
	return keys
}
