package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	// ErrNoFiles 请求中没有任何文件
	ErrNoFiles = errors.New("没有待处理的文件")

	// ErrTooManyFiles 单次上传超出文件数上限
	ErrTooManyFiles = errors.New("单次上传文件数超出上限")

	// ErrJobMissingTitle 创建岗位缺少标题
	ErrJobMissingTitle = errors.New("岗位标题不能为空")

	// ErrEmptyQuery 搜索查询为空
	ErrEmptyQuery = errors.New("查询内容不能为空")
)

// IngestError 单份文档处理失败的详细错误
type IngestError struct {
	Filename string
	Op       string
	BaseErr  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("处理文档失败 (操作:%s, 文件:%s): %v", e.Op, e.Filename, e.BaseErr)
}

func (e *IngestError) Unwrap() error {
	return e.BaseErr
}

func newIngestError(filename, op string, err error) *IngestError {
	return &IngestError{Filename: filename, Op: op, BaseErr: err}
}
