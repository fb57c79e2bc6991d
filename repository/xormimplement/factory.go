package xormimplement

import (
	"context"
	"fmt"
	"sync"

	"github.com/parththirwani/ChatterStack-sub001/config"
	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/repository"
	"github.com/parththirwani/ChatterStack-sub001/repository/factory"
	"github.com/parththirwani/ChatterStack-sub001/repository/interfaces"

	"github.com/sirupsen/logrus"
	"xorm.io/xorm"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite3"
)

var once sync.Once
var instance *Factory

type Factory struct {
	// 连接 pg，本地开发和测试可以用 sqlite
	engine *xorm.Engine
}

// 获取一个factory实例
func GetRepositoryFactoryInstance() factory.Factory {
	once.Do(func() {
		engine, err := OpenDB(
			config.GetInstance().GetString(config.BaseDbXormType),
			config.GetInstance().GetString(config.BaseDbXormHost),
			config.GetInstance().GetString(config.BaseDbXormPort),
			config.GetInstance().GetString(config.BaseDbXormUsername),
			config.GetInstance().GetString(config.BaseDbXormName),
			config.GetInstance().GetString(config.BaseDbXormPassword),
			config.GetInstance().GetBool(config.BaseDbXormShowsql),
		)
		if err != nil {
			panic(err)
		}
		instance = NewFactory(engine)
	})
	return instance
}

func NewFactory(engine *xorm.Engine) *Factory {
	return &Factory{engine: engine}
}

// 设置xorm的连接参数，sqlite3 时 name 为数据库文件路径
func OpenDB(dbType string, host string, port string, userName string, name string, password string, showSql bool) (*xorm.Engine, error) {
	//拼接数据库参数
	var dsn string
	switch dbType {
	case DriverSqlite:
		dsn = name
	case DriverPostgres, "":
		dbType = DriverPostgres
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
			host,
			userName,
			password,
			name,
			port)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	//设置连接参数
	engine, err := xorm.NewEngine(dbType, dsn)
	if err != nil {
		logrus.Errorf("Database connection failed err: %v. Database name: %s", err, name)
		return nil, err
	}
	if dbType == DriverSqlite {
		// sqlite 只允许单写
		engine.SetMaxOpenConns(1)
	}
	//是否展示sql文件
	engine.ShowSQL(showSql)
	return engine, nil
}

// Sync 建表
func (f *Factory) Sync() error {
	return f.engine.Sync2(
		new(entity.Conversation),
		new(entity.Message),
		new(entity.UserProfile),
	)
}

// Close 关闭数据库连接
func (f *Factory) Close() error {
	return f.engine.Close()
}

// 创建一个会话
func (f *Factory) NewSession(ctx context.Context) interfaces.Session {
	return &Session{Session: f.engine.NewSession().Context(ctx)}
}

// NewConversationRepository 创建会话仓库
func (f *Factory) NewConversationRepository(session interfaces.Session) (repository.ConversationRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewConversationRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}

// NewMessageRepository 创建消息仓库
func (f *Factory) NewMessageRepository(session interfaces.Session) (repository.MessageRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewMessageRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}

// NewUserProfileRepository 创建用户画像仓库
func (f *Factory) NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewUserProfileRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}
