package constants

import "time"

// 匹配评分权重。这是产品决策值，不允许通过配置覆盖
const (
	MatchSkillWeight      = 0.5 // 技能匹配占比
	MatchExperienceWeight = 0.3 // 经验匹配占比
	MatchSemanticWeight   = 0.2 // 语义相似度占比
)

// 查询结果数量的裁剪边界与缺省值
const (
	SearchKMin     = 1
	SearchKMax     = 20 // 语义搜索最多返回20条
	SearchKDefault = 5  // 请求未携带k时的缺省值
	MatchNMin      = 1
	MatchNMax      = 50 // 岗位匹配最多返回50条
	MatchNDefault  = 10 // 请求未携带top_n时的缺省值
)

// 限流策略：固定窗口，每个actor每个窗口60次
const (
	RateLimitWindow = 60 * time.Second
	RateLimitQuota  = 60
)

// 幂等记录保留时间
const IdempotencyTTL = 24 * time.Hour

// Embedding输入的硬性字符上限（约8000 token的近似，按字符截断，非token感知）
const EmbeddingMaxChars = 32000

// 摘要与证据文本的截断长度
const (
	SummaryMaxChars         = 500
	EvidenceSummaryChars    = 100
	EvidenceMaxSkillsListed = 3
)

// 搜索结果摘要片段的滑动窗口参数
const (
	SnippetWindowChars = 150 // 窗口长度
	SnippetStepChars   = 50  // 滑动步长
)

// 分页默认值
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// 单次上传的文件数上限
const MaxFilesPerUpload = 10

// 简历处理状态（resumes.processing_status 的三态）
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// 记录类型
const (
	RecordKindResume = "resume"
	RecordKindJob    = "job"
)
