package xormimplement

import (
	"github.com/pkg/errors"
	"xorm.io/xorm"
)

// Session interfaces.Session 的 xorm 实现
type Session struct {
	*xorm.Session
}

func (s *Session) Begin() error {
	return errors.Wrap(s.Session.Begin(), "begin transaction")
}

func (s *Session) Close() error {
	return errors.Wrap(s.Session.Close(), "close session")
}

func (s *Session) Commit() error {
	return errors.Wrap(s.Session.Commit(), "commit transaction")
}

func (s *Session) Rollback() error {
	return errors.Wrap(s.Session.Rollback(), "rollback transaction")
}
