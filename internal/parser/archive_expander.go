package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"resume-rag-go/internal/logger"
)

// FileItem 展开后的一份待处理文档
type FileItem struct {
	Filename string
	Data     []byte
}

// 单个zip条目解压后的大小上限，防止zip炸弹
const maxArchiveEntryBytes = 50 << 20 // 50 MB

// ExpandArchive 把一份上传文件展开为待处理文档列表。
// zip包只展开一层：包内受支持格式的文件逐一纳入，嵌套的zip与
// 不支持的格式被静默跳过；非zip文件原样返回单元素列表。
func ExpandArchive(data []byte, filename string) ([]FileItem, error) {
	if strings.ToLower(path.Ext(filename)) != ".zip" {
		return []FileItem{{Filename: filename, Data: data}}, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptArchive, filename)
	}

	var items []FileItem
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		// 只取文件名部分，丢弃包内目录层级
		name := path.Base(entry.Name)
		if strings.HasPrefix(name, ".") {
			continue // 隐藏文件（如__MACOSX残留）
		}
		if !SupportedFormat(name) {
			logger.Debug().
				Str("archive", filename).
				Str("entry", entry.Name).
				Msg("跳过压缩包内不支持的条目")
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			logger.Warn().
				Str("archive", filename).
				Str("entry", entry.Name).
				Err(err).
				Msg("压缩包条目无法打开，跳过")
			continue
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveEntryBytes))
		rc.Close()
		if err != nil {
			logger.Warn().
				Str("archive", filename).
				Str("entry", entry.Name).
				Err(err).
				Msg("压缩包条目读取失败，跳过")
			continue
		}

		items = append(items, FileItem{Filename: name, Data: content})
	}

	return items, nil
}
