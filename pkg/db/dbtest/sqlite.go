// Package dbtest 基于 SQLite 文件库的仓储测试夹具
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Open 在临时目录创建数据库并建表，命名策略与错误转换同生产连接
// 时间以 SQLite 标准文本格式存储，DATE() 与区间比较可用
// SQLite 忽略 FOR UPDATE，行锁相关用例只能验证语句可执行
func Open(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "storefront.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		NamingStrategy:         schema.NamingStrategy{SingularTable: true},
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(models...))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}
