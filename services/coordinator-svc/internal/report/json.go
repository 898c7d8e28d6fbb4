package report

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONGenerator генератор JSON отчётов
type JSONGenerator struct{}

// NewJSONGenerator создаёт новый генератор
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// Format возвращает формат генератора
func (g *JSONGenerator) Format() Format {
	return FormatJSON
}

// Generate генерирует JSON отчёт
func (g *JSONGenerator) Generate(ctx context.Context, snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal error: %w", err)
	}
	return data, nil
}
