package handler

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/guard"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/types"
)

// newMatchEngine 准备一个岗位与candidateCount个合格候选的匹配测试引擎
func newMatchEngine(t *testing.T, candidateCount int) (*server.Hertz, string) {
	t.Helper()

	store := newStubRecordStore()
	jobID := "2b8a1f30-5c77-4d21-9e48-0a3b6c1d7e9f"
	store.jobs[jobID] = &models.JobRecord{
		ID:    jobID,
		Title: "Backend Engineer",
		Fields: mustJSONBytes(t, types.JobFields{
			Title:          "Backend Engineer",
			RequiredSkills: []string{"Go"},
		}),
	}
	for i := 0; i < candidateCount; i++ {
		store.resumes = append(store.resumes, models.ResumeRecord{
			ID: fmt.Sprintf("resume-%02d", i),
			Profile: mustJSONBytes(t, types.Profile{
				Name:            fmt.Sprintf("Candidate %02d", i),
				Skills:          []string{"Golang"},
				ExperienceYears: 5,
			}),
			ProcessingStatus: "completed",
		})
	}

	jh := NewJobHandler(nil, processor.NewMatcher(store), store, guard.NewGuard(guard.NewMemoryEntryStore()))
	h := newTestEngine()
	h.POST("/api/v1/jobs/:id/match", jh.Match)
	return h, jobID
}

func decodeMatches(t *testing.T, body []byte) []types.MatchResult {
	t.Helper()
	var resp struct {
		Matches []types.MatchResult `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Matches
}

// 请求体未携带top_n时默认返回10条，不是裁剪下界的1条
func TestMatchDefaultsToTenResults(t *testing.T) {
	h, jobID := newMatchEngine(t, 12)

	resp := performJSON(h, "POST", "/api/v1/jobs/"+jobID+"/match", `{}`)
	require.Equal(t, 200, resp.Result().StatusCode())
	assert.Len(t, decodeMatches(t, resp.Result().Body()), 10)
}

func TestMatchHonorsExplicitTopN(t *testing.T) {
	h, jobID := newMatchEngine(t, 12)

	resp := performJSON(h, "POST", "/api/v1/jobs/"+jobID+"/match", `{"top_n": 3}`)
	require.Equal(t, 200, resp.Result().StatusCode())
	assert.Len(t, decodeMatches(t, resp.Result().Body()), 3)

	// 显式的0不等于"未携带"，按下界裁剪到1
	resp = performJSON(h, "POST", "/api/v1/jobs/"+jobID+"/match", `{"top_n": 0}`)
	require.Equal(t, 200, resp.Result().StatusCode())
	assert.Len(t, decodeMatches(t, resp.Result().Body()), 1)
}
