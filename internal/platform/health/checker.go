package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/internal/platform/startup"
	"github.com/koepon-app/koepon-backend/pkg/lifecycle"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// getRedisRunID 从Redis服务器信息中提取run_id。
// run_id在Redis每次重启后都会变化，用它探测重启比ping更可靠。
func getRedisRunID() (string, error) {
	ctx, cancel := context.WithTimeout(database.Ctx, pingTimeout)
	defer cancel()
	info, err := database.RDB.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

// InitializeRunID 在应用启动时执行一次，获取并设置初始的run_id。
func InitializeRunID() {
	runID, err := getRedisRunID()
	if err != nil {
		panic(fmt.Sprintf("无法在启动时获取Redis Run ID，请检查Redis服务: %v", err))
	}
	database.SetInitialRunID(runID)
	logger.S.Infof("获取初始Redis Run ID成功: %s", runID)
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作。
func PerformCheck() {
	runID, err := getRedisRunID()
	connected := err == nil

	needsRebuild := database.AssessHealth(connected, runID)
	if !needsRebuild {
		return
	}

	rebuildErr := startup.RebuildCache()
	if rebuildErr != nil {
		logger.S.Errorf("健康检查: 缓存热重建失败: %v", rebuildErr)
		database.MarkRebuildComplete(false, "")
		return
	}

	// 重建后再次读取run_id，确认重建期间Redis没有再次重启
	idAfterRebuild, err := getRedisRunID()
	if err != nil {
		logger.S.Error("健康检查: 缓存重建后无法连接到Redis，重建无效。")
		database.MarkRebuildComplete(false, "")
		return
	}
	database.MarkRebuildComplete(true, idAfterRebuild)
}

// StartRedisHealthCheck 周期性地阻塞式执行健康检查，直到收到停机信号。
func StartRedisHealthCheck(handle *lifecycle.Handle) {
	defer handle.Close()
	logger.S.Info("Redis健康检查器已启动。")

	timer := time.NewTimer(checkInterval)
	defer timer.Stop()

	for {
		select {
		case <-handle.Done():
			logger.S.Info("Redis健康检查器已退出。")
			return
		case <-timer.C:
			PerformCheck()
			timer.Reset(checkInterval)
		}
	}
}
