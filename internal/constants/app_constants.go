package constants

import "time"

const (
	// AnalyzerVersion 写入分析记录，便于区分规则版本
	AnalyzerVersion = "1.0"

	DefaultAnalysisCacheTTL = 24 * time.Hour
	// InFlightTTL 单个文件分析占位的过期时间，防止消费者崩溃后永久占位
	InFlightTTL = 30 * time.Minute
	// ProfileLockTTL 档案生成锁的过期时间
	ProfileLockTTL = 2 * time.Minute
)
