package indicators

import "fmt"

// Combine 按策略合并多路布尔信号。
// any 取并集，all 取交集，atleast_k 要求至少 k 路同时为真。
func Combine(signals [][]bool, policy string, k int) ([]bool, error) {
	if len(signals) == 0 {
		return nil, fmt.Errorf("没有可合并的信号")
	}
	length := len(signals[0])
	for _, s := range signals[1:] {
		if len(s) != length {
			return nil, fmt.Errorf("信号长度不一致: %d vs %d", len(s), length)
		}
	}
	out := make([]bool, length)
	for i := 0; i < length; i++ {
		count := 0
		for _, s := range signals {
			if s[i] {
				count++
			}
		}
		switch policy {
		case PolicyAny:
			out[i] = count > 0
		case PolicyAll:
			out[i] = count == len(signals)
		case PolicyAtLeastK:
			out[i] = count >= k
		default:
			return nil, fmt.Errorf("非法的组合策略: %s", policy)
		}
	}
	return out, nil
}
