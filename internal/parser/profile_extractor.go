package parser

import (
	"regexp"
	"strings"
	"time"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/types"
)

var (
	emailRegex = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	phoneRegex = regexp.MustCompile(`\+?\d{10,}`)
	nameRegex  = regexp.MustCompile(`^[A-Z][a-z]+(\s[A-Z][a-z]+)+$`)

	// 行内是否含有连续10位数字（判定为电话行）
	tenDigitsRegex = regexp.MustCompile(`\d{10}`)

	// 年份区间，例如 "2018-2021"、"2019 - present"
	yearRangeRegex = regexp.MustCompile(`(?i)(\d{4})\s*-\s*(\d{4}|present|current)`)

	// 段落条目的起始行：4位年份或项目符号
	entryStartRegex = regexp.MustCompile(`^(\d{4}|•|-|\*)`)

	fourDigitsRegex = regexp.MustCompile(`\d{4}`)
)

// 各段落的章节头与终止词。章节体一直延伸到空行、
// 下一个已知章节头或文本末尾
var (
	skillsHeaderRegex  = regexp.MustCompile(`(?i)skills?:?`)
	expHeaderRegex     = regexp.MustCompile(`(?i)experience:?`)
	eduHeaderRegex     = regexp.MustCompile(`(?i)education:?`)
	summaryHeaderRegex = regexp.MustCompile(`(?i)(summary|objective|profile):?`)

	skillsTerminators  = []string{"experience", "education"}
	expTerminators     = []string{"education", "skills"}
	eduTerminators     = []string{"experience", "skills"}
	summaryTerminators = []string{"experience", "education"}
)

// ProfileExtractor 从纯文本中抽取结构化画像。
// 抽取是一条由独立纯函数组成的流水线，每个字段各自兜底；
// 除时钟（用于解析"present"区间）外不依赖任何外部状态。
type ProfileExtractor struct {
	now func() time.Time // 可注入时钟，测试用
}

// NewProfileExtractor 创建画像抽取器
func NewProfileExtractor() *ProfileExtractor {
	return &ProfileExtractor{now: time.Now}
}

// NewProfileExtractorWithClock 使用指定时钟创建画像抽取器，供测试固定当前年份
func NewProfileExtractorWithClock(now func() time.Time) *ProfileExtractor {
	return &ProfileExtractor{now: now}
}

// Extract 对同一段文本与同一自然年，输出完全确定
func (p *ProfileExtractor) Extract(text string) types.Profile {
	lines := nonEmptyLines(text)

	return types.Profile{
		Name:            extractName(lines),
		Email:           firstMatch(emailRegex, text),
		Phone:           firstMatch(phoneRegex, text),
		Skills:          extractSkills(text),
		Experience:      extractEntries(text, expHeaderRegex, expTerminators),
		Education:       extractEntries(text, eduHeaderRegex, eduTerminators),
		Summary:         extractSummary(text),
		ExperienceYears: calculateExperienceYears(text, p.now().Year()),
	}
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func firstMatch(re *regexp.Regexp, text string) string {
	return re.FindString(text)
}

// extractName 在前5个非空行里找形如"First Last"的标题式姓名，
// 跳过含邮箱或电话的行；找不到则退回第一个非空行
func extractName(lines []string) string {
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for _, line := range lines[:limit] {
		if strings.Contains(line, "@") || tenDigitsRegex.MatchString(line) {
			continue
		}
		if len(line) < 50 && nameRegex.MatchString(line) {
			return line
		}
	}

	if len(lines) > 0 {
		return lines[0]
	}
	return "Unknown"
}

// extractSkills 取两个来源的并集：
// (a) 词表技能在全文中的大小写不敏感子串匹配，按规范写法收录；
// (b) "Skills:"章节体按逗号/分号/换行切分后长度在(2,30)区间的原样token。
// 结果按插入顺序去重（精确字符串去重，不做大小写折叠）
func extractSkills(text string) []string {
	seen := make(map[string]bool)
	var skills []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			skills = append(skills, s)
		}
	}

	lowerText := strings.ToLower(text)
	for _, skill := range skillsVocabulary {
		if strings.Contains(lowerText, strings.ToLower(skill)) {
			add(skill)
		}
	}

	if body, ok := captureSection(text, skillsHeaderRegex, skillsTerminators); ok {
		for _, token := range splitAny(body, ",;\n") {
			token = strings.TrimSpace(token)
			if len(token) > 2 && len(token) < 30 {
				add(token)
			}
		}
	}

	if skills == nil {
		skills = []string{}
	}
	return skills
}

// extractEntries 定位章节体并按条目边界切分。
// 新条目开始于以4位年份或项目符号(•/-/*)起头的行；
// 裁剪后不足10个字符的条目丢弃
func extractEntries(text string, header *regexp.Regexp, terminators []string) []string {
	entries := []string{}

	body, ok := captureSection(text, header, terminators)
	if !ok {
		return entries
	}

	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(current, "\n"))
		if len(joined) > 10 {
			entries = append(entries, joined)
		}
		current = nil
	}

	for i, line := range strings.Split(body, "\n") {
		if i > 0 && entryStartRegex.MatchString(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return entries
}

// calculateExperienceYears 扫描全文（而非仅经验章节）中的所有年份区间，
// 以"present/current"结尾的区间用当前自然年收口，按月累加后折算为年。
// 重叠区间会被重复累计，这是已知的粗粒度近似
func calculateExperienceYears(text string, currentYear int) int {
	totalMonths := 0
	for _, m := range yearRangeRegex.FindAllStringSubmatch(text, -1) {
		startYear := atoi4(m[1])
		endYear := currentYear
		if fourDigitsRegex.MatchString(m[2]) {
			endYear = atoi4(m[2])
		}
		totalMonths += (endYear - startYear) * 12
	}
	// 每个区间贡献整数年，按月累计只是保留口径，除法总是整除
	return totalMonths / 12
}

// atoi4 解析恰好4位数字，调用方保证输入来自\d{4}捕获
func atoi4(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// extractSummary 优先取summary/objective/profile章节的前500字符；
// 其次取第一个长度在(50,1000)区间的段落；最后退回全文前500字符
func extractSummary(text string) string {
	if body, ok := captureSection(text, summaryHeaderRegex, summaryTerminators); ok {
		return truncateRunes(strings.TrimSpace(body), constants.SummaryMaxChars)
	}

	for _, para := range strings.Split(text, "\n\n") {
		if len(para) > 50 && len(para) < 1000 {
			return truncateRunes(strings.TrimSpace(para), constants.SummaryMaxChars)
		}
	}

	return truncateRunes(text, constants.SummaryMaxChars)
}

// captureSection 定位章节头的首次出现并截取章节体。
// 章节体从头部之后第一个非空白字符开始，延伸到最先出现的
// 空行、换行后紧跟终止词（大小写不敏感）的位置或文本末尾。
// 头部后没有正文、或章节体悬停在末尾孤立换行上时视为未命中
func captureSection(text string, header *regexp.Regexp, terminators []string) (string, bool) {
	loc := header.FindStringIndex(text)
	if loc == nil {
		return "", false
	}

	// 跳过头部后的空白，定位正文起点
	start := loc[1]
	for start < len(text) && isSpace(text[start]) {
		start++
	}
	if start >= len(text) {
		return "", false
	}

	pos := start
	for {
		// 吞掉当前行
		nl := strings.IndexByte(text[pos:], '\n')
		if nl < 0 {
			// 正文延伸到文本末尾
			return text[start:], true
		}
		lineEnd := pos + nl

		rest := text[lineEnd:]
		if strings.HasPrefix(rest, "\n\n") {
			return text[start:lineEnd], true
		}
		if terminatorFollows(rest, terminators) {
			return text[start:lineEnd], true
		}
		if lineEnd+1 >= len(text) {
			// 末尾孤立换行，无处终止
			return "", false
		}

		pos = lineEnd + 1
	}
}

func terminatorFollows(rest string, terminators []string) bool {
	if !strings.HasPrefix(rest, "\n") {
		return false
	}
	after := strings.ToLower(rest[1:])
	for _, t := range terminators {
		if strings.HasPrefix(after, t) {
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func splitAny(s, chars string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(chars, r)
	})
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
