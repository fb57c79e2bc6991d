package tools

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	MaxThread                int
	CacheNum                 int
	QueueSize                int
	TimeIntervalMilliSeconds int64
}

func GetDefaultConfig() *Config {
	return &Config{
		MaxThread:                100,
		CacheNum:                 200,
		QueueSize:                1024,
		TimeIntervalMilliSeconds: 500,
	}
}

// Processor 攒批处理器：消息先进入缓存，缓存满或者超过时间间隔就打成一批交给 handler，
// 同时最多 MaxThread 个批次并发执行。
type Processor[T any] struct {
	Name          string
	config        *Config
	messageChan   chan T
	isOpen        bool
	cacheChan     chan T
	cacheChanLock sync.Mutex
	threadChan    chan struct{}
	ctx           context.Context
	cancelFunc    context.CancelFunc
	loopWg        sync.WaitGroup
	messageWg     sync.WaitGroup
	pendingWg     sync.WaitGroup
	serviceLock   sync.RWMutex
	updateTime    int64
	handler       func(batchData []T) error
}

func NewProcessor[T any](name string, config *Config, handler func(batchData []T) error) *Processor[T] {
	if config == nil {
		config = GetDefaultConfig()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.MaxThread <= 0 {
		config.MaxThread = 1
	}
	if config.CacheNum <= 0 {
		config.CacheNum = 1
	}
	return &Processor[T]{
		Name:        name,
		config:      config,
		handler:     handler,
		messageChan: make(chan T, config.QueueSize),
	}
}

func (p *Processor[T]) Start() {

	p.serviceLock.Lock()
	defer p.serviceLock.Unlock()

	if p.isOpen {
		return
	}

	p.threadChan = make(chan struct{}, p.config.MaxThread)
	p.cacheChan = make(chan T, p.config.CacheNum)

	p.ctx, p.cancelFunc = context.WithCancel(context.Background())

	p.updateCacheDataChan()

	p.loopWg.Add(1)
	go func() {
		defer p.loopWg.Done()
		for {
			select {
			case <-p.ctx.Done():
				return
			case msg := <-p.messageChan:
				p.process(msg)
			}
		}
	}()

	p.isOpen = true

}

// Submit 非阻塞提交，队列已满或处理器未启动时返回 false
func (p *Processor[T]) Submit(data T) bool {
	p.serviceLock.RLock()
	defer p.serviceLock.RUnlock()

	if !p.isOpen {
		return false
	}

	p.pendingWg.Add(1)
	select {
	case p.messageChan <- data:
		return true
	default:
		p.pendingWg.Done()
		return false
	}
}

// Wait 等待所有已提交的消息处理完成
func (p *Processor[T]) Wait() {
	p.pendingWg.Wait()
}

// Stop 停止接收新消息，处理完队列中剩余的消息后返回
func (p *Processor[T]) Stop() {

	p.serviceLock.Lock()
	defer p.serviceLock.Unlock()

	if !p.isOpen {
		return
	}

	p.isOpen = false
	p.cancelFunc()
	p.loopWg.Wait()

	var rest []T
	for {
		select {
		case msg := <-p.messageChan:
			rest = append(rest, msg)
			continue
		case cacheData := <-p.cacheChan:
			rest = append(rest, cacheData)
			continue
		default:
		}
		break
	}
	if len(rest) > 0 {
		p.dispatch(rest)
	}

	p.messageWg.Wait()

}

func (p *Processor[T]) updateCacheDataChan() {

	p.loopWg.Add(1)
	go func() {
		defer p.loopWg.Done()

		logrus.Infof("batch process: %s batch handle thread start", p.Name)
		defer logrus.Infof("batch process: %s batch handle thread close", p.Name)

		ticker := time.NewTicker(time.Millisecond * time.Duration(p.config.TimeIntervalMilliSeconds))
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.cacheChanLock.Lock()
				if time.Now().UnixNano()-p.updateTime > p.config.TimeIntervalMilliSeconds*1000000 ||
					time.Now().UnixNano()-p.updateTime < 0 {

					dataSlice := p.drainCache(nil)
					if len(dataSlice) > 0 {
						p.dispatch(dataSlice)
						p.updateTime = time.Now().UnixNano()
					}
				}
				p.cacheChanLock.Unlock()
			}
		}
	}()

}

func (p *Processor[T]) process(data T) {
	p.cacheChanLock.Lock()
	defer p.cacheChanLock.Unlock()

	select {
	case p.cacheChan <- data:
		return
	default:
		defer func() {
			p.updateTime = time.Now().UnixNano()
		}()

		p.dispatch(p.drainCache([]T{data}))
	}
}

func (p *Processor[T]) drainCache(dataSlice []T) []T {
	for {
		select {
		case cacheData := <-p.cacheChan:
			dataSlice = append(dataSlice, cacheData)
			continue
		default:
		}
		break
	}
	return dataSlice
}

func (p *Processor[T]) dispatch(batchData []T) {
	p.threadChan <- struct{}{}
	p.messageWg.Add(1)

	go func() {
		defer func() {
			// handler panic 只丢弃当前批次
			if r := recover(); r != nil {
				logrus.Errorf("batch process: %s batch handle panic: %v", p.Name, r)
			}
			p.messageWg.Done()
			<-p.threadChan
			for range batchData {
				p.pendingWg.Done()
			}
		}()

		err := p.handler(batchData)
		if err != nil {
			logrus.Errorf("batch process: %s batch handle err: %s", p.Name, err.Error())
			return
		}
	}()
}
