package constants

// Redis Key 统一格式: app:{module}:{entity}:{unique_id}
const (
	AppPrefix = "app"

	AnalysisModulePrefix = "analysis"
	LockModulePrefix     = "lock"

	EntityResult   = "result"
	EntityInFlight = "inflight"
	EntityDocument = "document"

	// KeyAnalysisResult 分析结果缓存 (STRING, JSON)
	// 格式: app:analysis:result:{fileMD5}
	KeyAnalysisResult = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityResult + ":%s"

	// KeyAnalysisInFlight 正在分析中的文件占位 (STRING, 带过期时间)
	// 格式: app:analysis:inflight:{fileMD5}
	KeyAnalysisInFlight = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityInFlight + ":%s"

	// KeyProfileLock 档案生成锁 (STRING)
	// 格式: app:lock:document:{candidateID}
	KeyProfileLock = AppPrefix + ":" + LockModulePrefix + ":" + EntityDocument + ":%s"
)
