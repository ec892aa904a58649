package parser

import (
	"errors"
	"fmt"
)

// 解析层的哨兵错误。上层据此把一份文档标记为failed而不中断整批摄入
var (
	// ErrUnsupportedFormat 文件扩展名不在支持列表内
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument 解析成功但没有提取到任何文本
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrCorruptArchive 压缩包无法打开
	ErrCorruptArchive = errors.New("archive is corrupt or unreadable")
)

// CorruptDocumentError 文件格式正确但内容损坏，无法解析
type CorruptDocumentError struct {
	Filename string
	Format   string
	Err      error
}

func (e *CorruptDocumentError) Error() string {
	return fmt.Sprintf("corrupt %s document %q: %v", e.Format, e.Filename, e.Err)
}

func (e *CorruptDocumentError) Unwrap() error {
	return e.Err
}
