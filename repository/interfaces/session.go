package interfaces

// Session 一次数据库会话，同一个 session 创建的 repository 共享事务
type Session interface {
	Begin() error
	Close() error
	Commit() error
	Rollback() error
}
