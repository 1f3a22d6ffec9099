package logic

import "sync"

// CampaignLocker 每个活动一把写锁，同一活动的写操作串行执行
type CampaignLocker struct {
	mu    sync.Mutex
	locks map[string]*campaignLock
}

type campaignLock struct {
	mu   sync.Mutex
	refs int
}

// NewCampaignLocker 创建活动锁
func NewCampaignLocker() *CampaignLocker {
	return &CampaignLocker{locks: make(map[string]*campaignLock)}
}

// Lock 获取活动写锁，返回的函数用于释放
func (l *CampaignLocker) Lock(campaignID string) func() {
	l.mu.Lock()
	cl, ok := l.locks[campaignID]
	if !ok {
		cl = &campaignLock{}
		l.locks[campaignID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, campaignID)
		}
		l.mu.Unlock()
	}
}

func (l *CampaignLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
