package types

import "time"

// Profile 从单份文档文本中抽取出的结构化画像。
// 对同一段文本（以及同一个自然年）重复抽取必须得到完全相同的结果，
// 抽取过程是纯函数，不访问任何外部状态。
type Profile struct {
	Name            string   `json:"name"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Skills          []string `json:"skills"`
	Experience      []string `json:"experience"`
	Education       []string `json:"education"`
	Summary         string   `json:"summary"`
	ExperienceYears int      `json:"experience_years"`
}

// JobFields 岗位记录的业务字段
type JobFields struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	RequiredSkills     []string `json:"required_skills"`
	ExperienceRequired int      `json:"experience_required"`
	Location           string   `json:"location"`
}

// IngestOutcome 单份文档的处理结果。批量摄入时每份文档独立上报，
// 一份失败不影响其余文档
type IngestOutcome struct {
	Filename string `json:"filename"`
	Status   string `json:"status"` // completed / failed
	ID       string `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SearchHit 语义搜索的一条命中
type SearchHit struct {
	ResumeID       string            `json:"resume_id"`
	CandidateName  string            `json:"candidate_name"`
	Snippet        string            `json:"snippet"`
	RelevanceScore float64           `json:"relevance_score"`
	Metadata       map[string]string `json:"metadata"`
}

// MatchResult 岗位匹配的一条结果。按请求即时计算，从不持久化
type MatchResult struct {
	ResumeID       string   `json:"resume_id"`
	CandidateName  string   `json:"candidate_name"`
	MatchScore     float64  `json:"match_score"` // [0, 100]
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Evidence       string   `json:"evidence"`
	ExperienceOK   bool     `json:"experience_match"`
}

// VectorHit 向量索引返回的一条近邻
type VectorHit struct {
	ID      string                 // 对应记录ID
	Score   float64                // 余弦相似度
	Payload map[string]interface{} // 载荷数据
}

// ResumeIngestedEvent 摄入成功后发布到消息队列的事件
type ResumeIngestedEvent struct {
	ResumeID   string    `json:"resume_id"`
	Filename   string    `json:"filename"`
	Owner      string    `json:"owner"`
	IngestedAt time.Time `json:"ingested_at"`
}
