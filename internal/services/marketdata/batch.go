package marketdata

import (
	"strings"

	"github.com/bobmcallan/tally/internal/models"
)

// BuildBatches splits assets into ceil(N/B) request groups in encounter
// order, B being the provider's batch size. Duplicate assets are placed once.
// The result is complete when returned and is not modified afterwards.
func BuildBatches(cfg models.ProviderConfig, market models.Market, assets []models.Asset) *models.ProviderBatch {
	size := cfg.EffectiveBatchSize()
	batch := &models.ProviderBatch{
		Provider:   cfg.ID,
		Market:     market,
		BatchSize:  size,
		Batches:    make(map[int]string),
		AssetBatch: make(map[string]int, len(assets)),
		Requests:   make(map[int][]models.Asset),
	}

	symbols := make(map[int][]string)
	n := 0
	for _, asset := range assets {
		key := asset.Key()
		if _, seen := batch.AssetBatch[key]; seen {
			continue
		}
		index := n / size
		batch.AssetBatch[key] = index
		batch.Requests[index] = append(batch.Requests[index], asset)
		symbols[index] = append(symbols[index], cfg.Symbol(asset))
		n++
	}

	for index, codes := range symbols {
		batch.Batches[index] = strings.Join(codes, ",")
	}
	return batch
}
