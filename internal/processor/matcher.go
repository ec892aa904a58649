package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/types"
)

// Matcher 岗位匹配计算。确定性评分：对同一份岗位与同一批
// 候选记录重复计算得到完全相同的排序，不经过任何生成式模型
type Matcher struct {
	records RecordStore
}

// NewMatcher 创建匹配计算器
func NewMatcher(records RecordStore) *Matcher {
	return &Matcher{records: records}
}

// Match 对岗位计算全量候选的匹配度并返回前topN名。
// topN裁剪到[1, 50]；岗位不存在时返回存储层的NotFound错误。
// 排序为分数降序，同分保持候选记录的存储顺序；
// 截断发生在完整排序之后，不做近似Top-K
func (m *Matcher) Match(ctx context.Context, jobID string, topN int) ([]types.MatchResult, error) {
	if topN < constants.MatchNMin {
		topN = constants.MatchNMin
	}
	if topN > constants.MatchNMax {
		topN = constants.MatchNMax
	}

	job, err := m.records.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var fields types.JobFields
	if err := json.Unmarshal(job.Fields, &fields); err != nil {
		return nil, fmt.Errorf("岗位字段反序列化失败: %w", err)
	}

	var jobVector []float64
	if len(job.Embedding) > 0 {
		if err := json.Unmarshal(job.Embedding, &jobVector); err != nil {
			return nil, fmt.Errorf("岗位向量反序列化失败: %w", err)
		}
	}

	candidates, err := m.records.ScanCompletedResumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("扫描候选记录失败: %w", err)
	}

	results := make([]types.MatchResult, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]

		var profile types.Profile
		if err := json.Unmarshal(candidate.Profile, &profile); err != nil {
			logger.Ctx(ctx).Warn().Str("resume_id", candidate.ID).Err(err).Msg("候选画像反序列化失败，跳过")
			continue
		}

		var candidateVector []float64
		if len(candidate.Embedding) > 0 {
			if err := json.Unmarshal(candidate.Embedding, &candidateVector); err != nil {
				logger.Ctx(ctx).Warn().Str("resume_id", candidate.ID).Err(err).Msg("候选向量反序列化失败，跳过")
				continue
			}
		}

		result, err := scoreCandidate(candidate.ID, profile, candidateVector, fields, jobVector)
		if err != nil {
			logger.Ctx(ctx).Warn().Str("resume_id", candidate.ID).Err(err).Msg("候选评分失败，跳过")
			continue
		}
		results = append(results, result)
	}

	// 同分保持存储顺序，评分函数会产生合法的精确并列
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// scoreCandidate 单个候选的确定性评分。
// 技能匹配是非对称包含：要求技能作为候选技能的大小写不敏感子串
func scoreCandidate(resumeID string, profile types.Profile, candidateVector []float64, fields types.JobFields, jobVector []float64) (types.MatchResult, error) {
	var matching, missing []string
	for _, required := range fields.RequiredSkills {
		requiredLower := strings.ToLower(required)
		found := false
		for _, cs := range profile.Skills {
			if strings.Contains(strings.ToLower(cs), requiredLower) {
				found = true
				break
			}
		}
		if found {
			matching = append(matching, required)
		} else {
			missing = append(missing, required)
		}
	}

	skillRatio := 0.0
	if len(fields.RequiredSkills) > 0 {
		skillRatio = float64(len(matching)) / float64(len(fields.RequiredSkills))
	}

	experienceRatio := 1.0
	if fields.ExperienceRequired > 0 {
		experienceRatio = float64(profile.ExperienceYears) / float64(fields.ExperienceRequired)
		if experienceRatio > 1.0 {
			experienceRatio = 1.0
		}
	}

	semantic := 0.0
	if len(jobVector) > 0 && len(candidateVector) > 0 {
		var err error
		semantic, err = parser.CosineSimilarity(jobVector, candidateVector)
		if err != nil {
			return types.MatchResult{}, err
		}
	}

	score := (skillRatio*constants.MatchSkillWeight +
		experienceRatio*constants.MatchExperienceWeight +
		semantic*constants.MatchSemanticWeight) * 100

	if matching == nil {
		matching = []string{}
	}
	if missing == nil {
		missing = []string{}
	}

	return types.MatchResult{
		ResumeID:       resumeID,
		CandidateName:  profile.Name,
		MatchScore:     round2(score),
		MatchingSkills: matching,
		MissingSkills:  missing,
		Evidence:       buildEvidence(profile, matching, fields.ExperienceRequired),
		ExperienceOK:   profile.ExperienceYears >= fields.ExperienceRequired,
	}, nil
}

// buildEvidence 组装供人阅读的匹配依据，各部分以". "连接
func buildEvidence(profile types.Profile, matching []string, requiredYears int) string {
	var parts []string

	if len(matching) > 0 {
		listed := matching
		if len(listed) > constants.EvidenceMaxSkillsListed {
			listed = listed[:constants.EvidenceMaxSkillsListed]
		}
		parts = append(parts, fmt.Sprintf("Has %d matching skill(s): %s", len(matching), strings.Join(listed, ", ")))
	}

	if profile.ExperienceYears > 0 {
		parts = append(parts, fmt.Sprintf("%d years of experience", profile.ExperienceYears))
		if profile.ExperienceYears >= requiredYears {
			parts = append(parts, fmt.Sprintf("(meets %d year requirement)", requiredYears))
		}
	}

	if profile.Summary != "" {
		summary := profile.Summary
		if len(summary) > constants.EvidenceSummaryChars {
			summary = summary[:constants.EvidenceSummaryChars]
		}
		parts = append(parts, fmt.Sprintf("Profile: %s...", summary))
	}

	return strings.Join(parts, ". ")
}
