package xrefresh

// outcome 是一次排队等待的结果：新凭据或终止错误，二者互斥。
type outcome struct {
	credential string
	err        error
}

// pendingRetry 是一个等待新凭据的请求。
// 只由 retryQueue 持有，排空时恰好被 resolve 或 reject 一次。
type pendingRetry struct {
	req  Replayable
	done chan outcome
}

func newPendingRetry(req Replayable) *pendingRetry {
	// 缓冲为 1：排空方发送时不依赖等待方是否仍在读取
	return &pendingRetry{req: req, done: make(chan outcome, 1)}
}

// resolve 把新凭据写入请求并唤醒等待方。
func (p *pendingRetry) resolve(credential string) {
	p.req.WithCredential(credential)
	p.done <- outcome{credential: credential}
}

// reject 以终止错误唤醒等待方。
func (p *pendingRetry) reject(err error) {
	p.done <- outcome{err: err}
}

// wait 阻塞直到被排空。入队后不可取消。
func (p *pendingRetry) wait() outcome {
	return <-p.done
}

// retryQueue 是按到达顺序排列的等待队列。非并发安全，由 Coordinator 的锁保护。
type retryQueue struct {
	items []*pendingRetry
}

func (q *retryQueue) push(p *pendingRetry) int {
	q.items = append(q.items, p)
	return len(q.items)
}

func (q *retryQueue) len() int {
	return len(q.items)
}

// drain 取出全部条目并清空队列，返回顺序即到达顺序。
func (q *retryQueue) drain() []*pendingRetry {
	items := q.items
	q.items = nil
	return items
}
