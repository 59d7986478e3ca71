package universe

import "sort"

// McapBucket 是市值分层的一档。
type McapBucket struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Meta 是前端筛选控件需要的标的池元信息。
type Meta struct {
	Sectors     []string     `json:"sectors"`
	McapBuckets []McapBucket `json:"mcap_buckets"`
}

// BuildMeta 从元数据归纳板块列表与市值分层；没有元数据时给出静态默认值。
func BuildMeta(metas []SymbolMeta) Meta {
	if len(metas) == 0 {
		return defaultMeta()
	}
	sectorSet := make(map[string]struct{})
	maxCap := 0.0
	hasCap := false
	for _, m := range metas {
		if m.Sector != "" {
			sectorSet[m.Sector] = struct{}{}
		}
		if m.MarketCap > 0 {
			hasCap = true
			if m.MarketCap > maxCap {
				maxCap = m.MarketCap
			}
		}
	}
	sectors := make([]string, 0, len(sectorSet))
	for sector := range sectorSet {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	if len(sectors) == 0 && !hasCap {
		return defaultMeta()
	}

	var buckets []McapBucket
	if hasCap {
		buckets = []McapBucket{
			{Label: "Micro (<$500M)", Min: 0, Max: 5e8},
			{Label: "Small ($0.5B–$2B)", Min: 5e8, Max: 2e9},
			{Label: "Mid ($2B–$10B)", Min: 2e9, Max: 1e10},
			{Label: "Large (>$10B)", Min: 1e10, Max: maxCap},
		}
	}
	return Meta{Sectors: sectors, McapBuckets: buckets}
}

func defaultMeta() Meta {
	return Meta{
		Sectors: []string{"Energy", "Technology", "Financials", "Healthcare", "Industrials", "Consumer"},
		McapBuckets: []McapBucket{
			{Label: "Micro (<$300M)", Min: 0, Max: 3e8},
			{Label: "Small ($300M–$2B)", Min: 3e8, Max: 2e9},
			{Label: "Mid ($2B–$10B)", Min: 2e9, Max: 1e10},
			{Label: "Large (>$10B)", Min: 1e10, Max: 1e12},
		},
	}
}
