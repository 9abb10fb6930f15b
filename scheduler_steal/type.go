package scheduler_steal

// Scheduler is the view a Worker has of the pool that owns it. The worker
// never holds the pool itself, only this interface.
type Scheduler interface {
	Workers() []*Worker               // 当前worker快照，用于窃取
	Finish(w *Worker, j *Job)         // job执行或丢弃后的收尾：pending计数、唤醒等待者、依赖传播
	Recover(w *Worker, j *Job, p any) // 统一处理任务 panic
	Stolen(thief, victim *Worker)     // 窃取成功的回调（统计用）
}
