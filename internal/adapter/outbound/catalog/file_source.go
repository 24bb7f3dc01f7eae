// Package catalog provides product payload resolution for the
// orchestrator. The file source reads a catalog export once and serves
// payload lookups from memory.
package catalog

import (
	"catalogboost/internal/application/dto"
	"catalogboost/internal/port/outbound"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileProductSource resolves product payloads from a JSON catalog
// export file holding an array of product payloads.
type FileProductSource struct {
	byID map[int64]dto.ProductPayload
	ids  []int64
}

var _ outbound.ProductSource = (*FileProductSource)(nil)

// NewFileProductSource loads the catalog export at path.
func NewFileProductSource(path string) (*FileProductSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var products []dto.ProductPayload
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	return NewStaticProductSource(products)
}

// NewStaticProductSource builds a source from an in-memory product list.
func NewStaticProductSource(products []dto.ProductPayload) (*FileProductSource, error) {
	byID := make(map[int64]dto.ProductPayload, len(products))
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		if p.ID <= 0 {
			return nil, fmt.Errorf("catalog contains invalid product ID %d", p.ID)
		}
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("catalog contains duplicate product ID %d", p.ID)
		}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	return &FileProductSource{byID: byID, ids: ids}, nil
}

// IDs returns all product ids present in the catalog, in catalog order,
// so a full-catalog run partitions into the same chunks every time.
func (s *FileProductSource) IDs() []int64 {
	return append([]int64(nil), s.ids...)
}

// ResolvePayloads returns payloads for the requested ids, in request
// order. Every id must be present in the catalog.
func (s *FileProductSource) ResolvePayloads(_ context.Context, ids []int64) ([]dto.ProductPayload, error) {
	payloads := make([]dto.ProductPayload, 0, len(ids))
	for _, id := range ids {
		payload, ok := s.byID[id]
		if !ok {
			return nil, fmt.Errorf("product %d not found in catalog", id)
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}
