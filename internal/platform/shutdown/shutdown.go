package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/pkg/lifecycle"
)

// Coordinator 负责编排应用程序的优雅停机流程。
// 它接收外部创建的生命周期管理器，并使用它们来协调停机。
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager
}

// NewCoordinator 创建一个新的停机协调器。
func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager) *Coordinator {
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
	}
}

// ListenForSignalsAndShutdown 启动信号监听并阻塞，直到停机流程完成。
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.S.Info("收到关闭信号，开始优雅停机...")

	// 先关闭HTTP服务器，不再接收新请求，允许进行中的请求完成
	httpTimeout := 15 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.S.Errorf("HTTP服务器关闭错误: %v", err)
	} else {
		logger.S.Info("HTTP服务器已关闭。")
	}

	// 阶段一: 优雅停机，给入账处理器时间排空队列
	gracefulTimeout := 30 * time.Second
	logger.S.Infof("第一阶段停机：等待最多 %v 以完成任务...", gracefulTimeout)
	c.GracefulManager.Shutdown()

	remainingServices := c.GracefulManager.WaitWithTimeout(gracefulTimeout)
	if len(remainingServices) == 0 {
		logger.S.Info("所有服务已在第一阶段优雅关闭。")
	} else {
		// 阶段二: 强制停机
		forcefulTimeout := 1 * time.Second
		logger.S.Warnf("第一阶段超时，仍在运行: %v。发送第二停机信号...", remainingServices)
		c.ForcefulManager.Shutdown()
		c.ForcefulManager.WaitWithTimeout(forcefulTimeout)
	}

	// 未入账的抽选结果已在SQLite中，下次启动由巡查员补齐
	logger.S.Info("优雅停机完成。")
	logger.Sync()
}
