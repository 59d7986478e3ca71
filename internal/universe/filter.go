package universe

import (
	"fmt"
	"strings"
)

// Filters 描述标的池的筛选条件。市值上下限为 nil 时不限制。
type Filters struct {
	Sectors        []string `json:"sectors,omitempty"`
	McapMin        *float64 `json:"mcap_min,omitempty"`
	McapMax        *float64 `json:"mcap_max,omitempty"`
	ExcludeTickers []string `json:"exclude_tickers,omitempty"`
}

// Normalize 清洗排除列表：去空白、统一大写、丢弃空项。
func (f *Filters) Normalize() error {
	if f == nil {
		return nil
	}
	if f.McapMin != nil && *f.McapMin < 0 {
		return fmt.Errorf("mcap_min 不能为负")
	}
	if f.McapMax != nil && *f.McapMax < 0 {
		return fmt.Errorf("mcap_max 不能为负")
	}
	cleaned := f.ExcludeTickers[:0]
	for _, tok := range f.ExcludeTickers {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if tok != "" {
			cleaned = append(cleaned, tok)
		}
	}
	f.ExcludeTickers = cleaned
	return nil
}

// BuildUniverse 从元数据出发套用过滤条件与显式标的列表，返回最终的标的池。
// 没有元数据时用 fallback（通常是行情库里的全部标的）。过滤后为空视为错误。
func BuildUniverse(metas []SymbolMeta, filters *Filters, explicit []string, fallback []string) ([]string, error) {
	if len(metas) == 0 {
		metas = make([]SymbolMeta, 0, len(fallback))
		for _, sym := range fallback {
			metas = append(metas, SymbolMeta{Symbol: sym})
		}
	}
	if filters != nil {
		if err := filters.Normalize(); err != nil {
			return nil, err
		}
	}

	sectorSet := toSet(filtersSectors(filters))
	excludeSet := toSet(filtersExcludes(filters))
	explicitSet := make(map[string]struct{}, len(explicit))
	for _, sym := range explicit {
		explicitSet[strings.ToUpper(strings.TrimSpace(sym))] = struct{}{}
	}

	seen := make(map[string]struct{}, len(metas))
	var out []string
	for _, m := range metas {
		if m.Symbol == "" {
			continue
		}
		if _, dup := seen[m.Symbol]; dup {
			continue
		}
		if len(sectorSet) > 0 {
			if _, ok := sectorSet[m.Sector]; !ok {
				continue
			}
		}
		if filters != nil && filters.McapMin != nil && m.MarketCap < *filters.McapMin {
			continue
		}
		if filters != nil && filters.McapMax != nil && m.MarketCap > *filters.McapMax {
			continue
		}
		if _, excluded := excludeSet[strings.ToUpper(m.Symbol)]; excluded {
			continue
		}
		if len(explicitSet) > 0 {
			if _, ok := explicitSet[strings.ToUpper(m.Symbol)]; !ok {
				continue
			}
		}
		seen[m.Symbol] = struct{}{}
		out = append(out, m.Symbol)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("过滤条件排除了全部标的")
	}
	return out, nil
}

func filtersSectors(f *Filters) []string {
	if f == nil {
		return nil
	}
	return f.Sectors
}

func filtersExcludes(f *Filters) []string {
	if f == nil {
		return nil
	}
	return f.ExcludeTickers
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}
