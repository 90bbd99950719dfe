package database

import (
	"sync"

	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

// HealthState 描述了Redis热存储的可用状态
type HealthState int

const (
	StateHealthy HealthState = iota
	StateDegraded
	StateRebuilding
)

// statusManager 线程安全地维护Redis的健康状态与run_id
type statusManager struct {
	mu             sync.RWMutex
	state          HealthState
	lastKnownRunID string
}

var globalStatus = &statusManager{state: StateHealthy}

// HealthStateNow 返回当前的健康状态
func HealthStateNow() HealthState {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.state
}

// IsRedisHealthy 是热路径上使用的快捷判断
func IsRedisHealthy() bool {
	return HealthStateNow() == StateHealthy
}

// SetInitialRunID 在启动时记录首次观测到的Redis run_id
func SetInitialRunID(runID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.lastKnownRunID = runID
}

// AssessHealth 根据一次健康检查的结果推进状态机，返回是否需要触发缓存重建。
func AssessHealth(connected bool, newRunID string) (needsRebuild bool) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()

	switch globalStatus.state {
	case StateHealthy:
		if !connected {
			globalStatus.state = StateDegraded
			logger.S.Warn("健康检查: Redis连接丢失，系统状态 -> [降级]")
		} else if globalStatus.lastKnownRunID != "" && globalStatus.lastKnownRunID != newRunID {
			globalStatus.state = StateRebuilding
			needsRebuild = true
			logger.S.Warnf("健康检查: 检测到Redis重启 (run_id: %s -> %s)，系统状态 -> [重建中]", globalStatus.lastKnownRunID, newRunID)
		}
	case StateDegraded:
		if connected {
			if globalStatus.lastKnownRunID != "" && globalStatus.lastKnownRunID != newRunID {
				globalStatus.state = StateRebuilding
				needsRebuild = true
				logger.S.Warnf("健康检查: Redis已恢复但检测到重启 (run_id: %s -> %s)，系统状态 -> [重建中]", globalStatus.lastKnownRunID, newRunID)
			} else {
				globalStatus.state = StateHealthy
				logger.S.Info("健康检查: Redis连接已恢复，系统状态 -> [健康]")
			}
		}
	case StateRebuilding:
		if !connected {
			globalStatus.state = StateDegraded
			logger.S.Warn("健康检查: 缓存重建期间Redis连接再次丢失，系统状态 -> [降级]")
		} else {
			// 连接正常但仍处于重建状态，说明上次重建失败，需要再试
			needsRebuild = true
		}
	}

	if connected {
		globalStatus.lastKnownRunID = newRunID
	}

	return needsRebuild
}

// MarkRebuildComplete 在一次重建尝试结束后更新状态。
// 只有重建期间run_id未再变化，重建才被认定为有效。
func MarkRebuildComplete(success bool, runIDAfterRebuild string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()

	if globalStatus.state != StateRebuilding {
		return
	}

	if success && globalStatus.lastKnownRunID != runIDAfterRebuild {
		logger.S.Warnf("健康检查: 缓存重建期间Redis再次重启 (run_id: %s -> %s)，重建无效", globalStatus.lastKnownRunID, runIDAfterRebuild)
		globalStatus.lastKnownRunID = runIDAfterRebuild
		return
	}

	if success {
		globalStatus.state = StateHealthy
		logger.S.Info("健康检查: 缓存重建成功，系统状态 -> [健康]")
	} else {
		logger.S.Warn("健康检查: 缓存重建失败，保持[重建中]以待重试")
	}
}
