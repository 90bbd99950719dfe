package metadata

// --- SQLite键 ---
// 用于metadata表的key列
const (
	// LastCreditedResultIDKey 记录上一次成功入账（勋章派发）的DrawResult ID，
	// 是奖励处理器重启后的恢复起点。
	LastCreditedResultIDKey = "last_credited_result_id"
)

// --- Redis键 ---
const (
	// RedisLastCreditedResultIDKey 是奖励处理器的实时检查点 (String)。
	RedisLastCreditedResultIDKey = "meta:last_credited_result_id"
)
