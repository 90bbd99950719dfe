package lifecycle

import (
	"context"
	"time"
)

// Handle 是分发给单个后台服务的生命周期控制器。
type Handle struct {
	ctx context.Context

	// Close 通知Manager所属服务已完成退出，应在服务Goroutine结束前defer调用。
	Close func()
}

// Ctx 返回句柄内部的context。
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done 返回停机信号channel，供select监听。
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Err 在Done关闭后返回取消原因。
func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep 休眠指定时长；收到停机信号时提前返回ctx错误。
// 后台重试循环应使用它代替time.Sleep。
func (h *Handle) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-h.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return h.Err()
	case <-timer.C:
		return nil
	}
}
