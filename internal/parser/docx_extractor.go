package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDOCX 从DOCX文件字节中提取纯文本。
// DOCX本质上是一个zip包，正文在word/document.xml中；
// 顺序扫描XML token，收集<w:t>的字符数据，段落边界(</w:p>)转为换行。
func extractDOCX(data []byte, filename string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &CorruptDocumentError{Filename: filename, Format: "docx", Err: err}
	}

	var docEntry *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docEntry = f
			break
		}
	}
	if docEntry == nil {
		return "", &CorruptDocumentError{
			Filename: filename,
			Format:   "docx",
			Err:      fmt.Errorf("word/document.xml not found"),
		}
	}

	rc, err := docEntry.Open()
	if err != nil {
		return "", &CorruptDocumentError{Filename: filename, Format: "docx", Err: err}
	}
	defer rc.Close()

	text, err := walkDocumentXML(rc)
	if err != nil {
		return "", &CorruptDocumentError{Filename: filename, Format: "docx", Err: err}
	}
	return text, nil
}

// walkDocumentXML 顺序遍历document.xml的token流
func walkDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	var inText bool

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed document.xml: %w", err)
		}

		switch elem := tok.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "t": // <w:t> 文本run
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch elem.Name.Local {
			case "t":
				inText = false
			case "p": // 段落结束
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(elem)
			}
		}
	}

	return sb.String(), nil
}
