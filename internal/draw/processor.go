package draw

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koepon-app/koepon-backend/internal/medal"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/internal/platform/metadata"
	"github.com/koepon-app/koepon-backend/pkg/lifecycle"
)

// resultMinHeap 实现了 container/heap 接口
type resultMinHeap []DrawResult

func (h resultMinHeap) Len() int            { return len(h) }
func (h resultMinHeap) Less(i, j int) bool  { return h[i].ID < h[j].ID }
func (h resultMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultMinHeap) Push(x interface{}) { *h = append(*h, x.(DrawResult)) }
func (h *resultMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// creditProcessor 是单一写入者，按结果ID顺序执行勋章入账。
// 入账本身通过账本的RefID唯一约束幂等，处理器提供at-least-once投递，
// 两者合起来得到恰好一次的入账效果。
type creditProcessor struct {
	resultChan     chan DrawResult
	lastCreditedID uint
	buffer         *resultMinHeap
	processMutex   sync.Mutex
	isShutdown     bool
	shutdownMutex  sync.Mutex

	// 巡查员上次观测到的序列空洞，连续两次观测到同一空洞才跳过
	gapStartID uint
	gapNextID  uint
}

var globalCreditProcessor = creditProcessor{
	resultChan: make(chan DrawResult, 10000),
}

func initializeProcessor(startID uint) {
	globalCreditProcessor.lastCreditedID = startID
	h := &resultMinHeap{}
	heap.Init(h)
	globalCreditProcessor.buffer = h
}

func startProcessor(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	defer gracefulHandle.Close()
	defer forcefulHandle.Close()
	logger.S.Info("勋章入账处理器已启动。")

	// 立刻收集遗漏的结果
	globalCreditProcessor.checkAndRequeueMissedResults(gracefulHandle.Ctx())
	patrollerCtx, patrollerCancel := context.WithCancel(gracefulHandle.Ctx())
	defer patrollerCancel()
	go globalCreditProcessor.runPatroller(patrollerCtx)

	globalCreditProcessor.runMainLoop(gracefulHandle, forcefulHandle)
}

// submitResultToQueue 供抽选流程提交新产生的结果
func submitResultToQueue(result DrawResult) {
	globalCreditProcessor.submit(result)
}

func (cp *creditProcessor) submit(result DrawResult) {
	cp.shutdownMutex.Lock()
	if cp.isShutdown {
		cp.shutdownMutex.Unlock()
		logger.S.Warnf("入账队列已关闭，结果交由巡查员处理 result ID: %d", result.ID)
		return
	}
	select {
	case cp.resultChan <- result:
		cp.shutdownMutex.Unlock()
	default:
		cp.shutdownMutex.Unlock()
		logger.S.Warnf("入账队列已满，暂时放弃实时处理 result ID: %d", result.ID)
	}
}

func (cp *creditProcessor) runMainLoop(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	for {
		select {
		case <-gracefulHandle.Done():
			logger.S.Info("勋章入账处理器: 收到优雅停机信号，正在处理剩余任务...")
			cp.drainQueue(forcefulHandle)
			logger.S.Info("勋章入账处理器: 优雅停机完成，主循环退出。")
			return
		default:
			cp.processSingleResult(gracefulHandle)
		}
	}
}

// drainQueue 在收到优雅停机信号后尽力处理完剩余任务
func (cp *creditProcessor) drainQueue(forcefulHandle *lifecycle.Handle) {
	cp.checkAndRequeueMissedResults(forcefulHandle.Ctx())
	select {
	case <-forcefulHandle.Done():
		logger.S.Info("勋章入账处理器: 收到强制停机信号，排空队列被中断。")
		return
	default:
	}

	cp.shutdownMutex.Lock()
	cp.isShutdown = true
	close(cp.resultChan)
	cp.shutdownMutex.Unlock()

	for result := range cp.resultChan {
		cp.processMutex.Lock()
		heap.Push(cp.buffer, result)
		cp.processMutex.Unlock()
	}

	for {
		select {
		case <-forcefulHandle.Done():
			logger.S.Info("勋章入账处理器: 收到强制停机信号，排空队列被中断。")
			return
		default:
		}

		cp.processMutex.Lock()
		if cp.buffer.Len() == 0 {
			cp.processMutex.Unlock()
			return
		}
		// 只处理连续的任务
		if (*cp.buffer)[0].ID == cp.lastCreditedID+1 {
			result := heap.Pop(cp.buffer).(DrawResult)
			cp.processMutex.Unlock()
			// 排空模式下简化重试逻辑，失败即放弃
			if err := cp.applyCredit(result); err == nil {
				cp.processMutex.Lock()
				cp.lastCreditedID = result.ID
				cp.processMutex.Unlock()
			} else {
				logger.S.Errorf("排空队列时入账 result ID %d 失败，已放弃: %v", result.ID, err)
			}
		} else {
			cp.processMutex.Unlock()
			// 不连续说明有任务丢失，留给下次启动的巡查员
			return
		}
	}
}

func (cp *creditProcessor) processSingleResult(gracefulHandle *lifecycle.Handle) {
	nextResult, err := cp.getNextContinuousResult(gracefulHandle)
	if err != nil {
		return
	}

	if !database.IsRedisHealthy() {
		logger.S.Warn("勋章入账处理器: 检测到Redis不可用或正在重建，暂停处理...")
		gracefulHandle.Sleep(5 * time.Second)
		cp.processMutex.Lock()
		heap.Push(cp.buffer, nextResult)
		cp.processMutex.Unlock()
		return
	}

	select {
	case <-gracefulHandle.Done():
		return
	default:
	}

	err = cp.applyCreditWithRetry(gracefulHandle, nextResult)
	if err != nil {
		if err != context.Canceled && err != context.DeadlineExceeded {
			logger.S.Errorf("入账 result ID %d 失败，已放回队列: %v", nextResult.ID, err)
		}
		cp.processMutex.Lock()
		heap.Push(cp.buffer, nextResult)
		cp.processMutex.Unlock()
		return
	}

	cp.processMutex.Lock()
	cp.lastCreditedID = nextResult.ID
	cp.processMutex.Unlock()
}

// getNextContinuousResult 阻塞等待下一个连续的结果，可被停机信号中断
func (cp *creditProcessor) getNextContinuousResult(gracefulHandle *lifecycle.Handle) (DrawResult, error) {
	for {
		cp.processMutex.Lock()
		// 丢弃所有过时的堆顶元素
		for cp.buffer.Len() > 0 && (*cp.buffer)[0].ID <= cp.lastCreditedID {
			heap.Pop(cp.buffer)
		}

		if cp.buffer.Len() > 0 && (*cp.buffer)[0].ID == cp.lastCreditedID+1 {
			result := heap.Pop(cp.buffer).(DrawResult)
			cp.processMutex.Unlock()
			return result, nil
		}
		cp.processMutex.Unlock()

		select {
		case <-gracefulHandle.Done():
			return DrawResult{}, gracefulHandle.Err()
		case result := <-cp.resultChan:
			cp.processMutex.Lock()
			if result.ID <= cp.lastCreditedID {
				cp.processMutex.Unlock()
				continue
			}
			if result.ID == cp.lastCreditedID+1 {
				cp.processMutex.Unlock()
				return result, nil
			}
			heap.Push(cp.buffer, result)
			cp.processMutex.Unlock()
		}
	}
}

// applyCreditWithRetry 带指数退避和健康检查的重试
func (cp *creditProcessor) applyCreditWithRetry(gracefulHandle *lifecycle.Handle, result DrawResult) error {
	initialDelay := 8 * time.Millisecond
	maxDelay := 2 * time.Second

	delay := initialDelay
	for delay < maxDelay {
		err := cp.applyCredit(result)
		if err == nil {
			return nil
		}
		if err = gracefulHandle.Sleep(delay); err != nil {
			return err
		}
		delay *= 2
	}

	for {
		if !database.IsRedisHealthy() {
			return errors.New("redis became unhealthy during retry")
		}

		err := cp.applyCredit(result)
		if err == nil {
			return nil
		}

		logger.S.Errorf("告警: 入账持续失败，将在%v后重试 result ID %d", maxDelay, result.ID)
		if err := gracefulHandle.Sleep(maxDelay); err != nil {
			return err
		}
	}
}

// runPatroller 定期检查数据库中是否有被遗漏的结果
func (cp *creditProcessor) runPatroller(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cp.checkAndRequeueMissedResults(ctx)
		}
	}
}

func (cp *creditProcessor) checkAndRequeueMissedResults(ctx context.Context) {
	if !database.IsRedisHealthy() {
		return
	}

	cp.processMutex.Lock()
	startID := cp.lastCreditedID
	bufferMinID := uint(0)
	if cp.buffer.Len() > 0 {
		bufferMinID = (*cp.buffer)[0].ID
	}
	cp.processMutex.Unlock()

	select {
	case <-ctx.Done():
		return
	default:
	}

	var missedResults []DrawResult
	query := database.DB.Where("id > ?", startID)
	if bufferMinID > 0 {
		query = query.Where("id < ?", bufferMinID)
	}
	query.Order("id asc").Limit(1000).Find(&missedResults)

	// 事务回滚会烧掉序列值，结果ID并不保证连续。检查点之后若不存在
	// 紧邻的记录，主循环会一直等待一个永远不会出现的ID。
	nextExistingID := bufferMinID
	if len(missedResults) > 0 {
		nextExistingID = missedResults[0].ID
	}
	if nextExistingID > startID+1 {
		if cp.confirmSequenceGap(startID, nextExistingID) {
			cp.advancePastGap(startID, nextExistingID)
		}
	} else {
		cp.clearGapCandidate()
	}

	if len(missedResults) > 0 {
		cp.processMutex.Lock()
		currentID := cp.lastCreditedID
		cp.processMutex.Unlock()
		if bufferMinID > 0 && currentID >= bufferMinID {
			return
		}

		logger.S.Infof("巡查员: 发现 %d 条待入账的抽选结果，正在提交处理...", len(missedResults))
		for _, result := range missedResults {
			select {
			case <-ctx.Done():
				return
			default:
				if result.ID > currentID {
					cp.submit(result)
				}
			}
		}
	}
}

// confirmSequenceGap 记录一次空洞观测。仅当与上次巡查观测到的空洞完全
// 一致时返回true，避免把尚未提交的进行中事务误判为空洞。
func (cp *creditProcessor) confirmSequenceGap(startID, nextExistingID uint) bool {
	cp.processMutex.Lock()
	defer cp.processMutex.Unlock()
	if cp.lastCreditedID != startID {
		return false
	}
	if cp.gapStartID == startID && cp.gapNextID == nextExistingID {
		return true
	}
	cp.gapStartID = startID
	cp.gapNextID = nextExistingID
	return false
}

func (cp *creditProcessor) clearGapCandidate() {
	cp.processMutex.Lock()
	cp.gapStartID = 0
	cp.gapNextID = 0
	cp.processMutex.Unlock()
}

// advancePastGap 将检查点推进到空洞之后，并重新投递空洞之后的第一条结果，
// 唤醒可能阻塞在等待空洞ID上的主循环。
func (cp *creditProcessor) advancePastGap(startID, nextExistingID uint) {
	cp.processMutex.Lock()
	if cp.lastCreditedID != startID {
		cp.processMutex.Unlock()
		return
	}
	cp.lastCreditedID = nextExistingID - 1
	cp.gapStartID = 0
	cp.gapNextID = 0
	cp.processMutex.Unlock()

	logger.S.Warnf("巡查员: 结果ID区间 (%d, %d) 不存在记录，检查点跳过空洞推进到 %d",
		startID, nextExistingID, nextExistingID-1)

	if err := metadata.SetLastCreditedResultID(database.DB, nextExistingID-1); err != nil {
		logger.S.Errorf("巡查员: 持久化检查点失败: %v", err)
	}
	if database.IsRedisHealthy() {
		database.RDB.Set(database.Ctx, metadata.RedisLastCreditedResultIDKey, nextExistingID-1, 0)
	}

	var next DrawResult
	if err := database.DB.First(&next, "id = ?", nextExistingID).Error; err == nil {
		cp.submit(next)
	}
}

// applyCredit 为单个抽选结果执行勋章入账并推进检查点。
// 入账以结果UUID作为账本RefID，重复执行是无操作。
func (cp *creditProcessor) applyCredit(result DrawResult) error {
	cp.processMutex.Lock()
	currentID := cp.lastCreditedID
	cp.processMutex.Unlock()
	if currentID >= result.ID {
		return nil
	}

	if result.MedalsEarned > 0 {
		description := fmt.Sprintf("ガチャ抽選報酬 (%s)", result.PullType)
		err := medal.EarnMedals(result.UserID, result.VTuberID, result.MedalsEarned,
			medal.SourceGachaDraw, description, result.UUID)
		if err != nil {
			return err
		}
	}

	if err := metadata.SetLastCreditedResultID(database.DB, result.ID); err != nil {
		return err
	}
	if database.IsRedisHealthy() {
		database.RDB.Set(database.Ctx, metadata.RedisLastCreditedResultIDKey, result.ID, 0)
	}
	return nil
}
