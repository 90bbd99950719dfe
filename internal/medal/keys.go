package medal

// 与勋章余额相关的Redis键
const (
	// BalanceCacheKey 是一个Hash，缓存每个用户的余额快照。
	// Field: 用户UUID
	// Value: balanceSnapshot 的JSON序列化字符串
	BalanceCacheKey = "medal:balance"
)

// balanceSnapshot 定义了在Redis余额缓存中存储的数据结构
type balanceSnapshot struct {
	Total       int64                     `json:"total"`
	Available   int64                     `json:"available"`
	Used        int64                     `json:"used"`
	Reserved    int64                     `json:"reserved"`
	VTubers     map[string]vtuberSnapshot `json:"vtubers,omitempty"`
	LastUpdated int64                     `json:"lastUpdated"` // Unix秒
}

type vtuberSnapshot struct {
	Balance     int64 `json:"balance"`
	TotalEarned int64 `json:"totalEarned"`
	TotalUsed   int64 `json:"totalUsed"`
}
