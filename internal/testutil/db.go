package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 打开内存 SQLite（外键开启）并自动迁移所有表
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test db pool: %v", err)
	}
	// 内存库每个连接各自一份，固定单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Exec("PRAGMA foreign_keys=ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(schema.All()...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

// SeedTarget 创建一个目标及其零进度行
func SeedTarget(t *testing.T, db *gorm.DB, tenantID, action, resource string, amount int64, tags ...string) *schema.Target {
	t.Helper()

	target := &schema.Target{
		TenantID:     tenantID,
		Action:       action,
		Resource:     resource,
		TargetAmount: amount,
		Unit:         "SCU",
		Tags:         schema.StringSet(tags),
		CreatedBy:    "admin",
	}
	if err := db.Create(target).Error; err != nil {
		t.Fatalf("seed target: %v", err)
	}
	if err := db.Create(&schema.Progress{TargetID: target.ID}).Error; err != nil {
		t.Fatalf("seed progress: %v", err)
	}
	return target
}
