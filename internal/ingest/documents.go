package ingest

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	officelicense "github.com/unidoc/unioffice/common/license"
	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/spreadsheet"
	pdflicense "github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// DocumentParser 把一种格式的文档转成纯文本
type DocumentParser interface {
	Extensions() []string
	Parse(data []byte) (string, error)
}

// TextParser txt与markdown
type TextParser struct{}

func (TextParser) Extensions() []string { return []string{".txt", ".md", ".markdown"} }

func (TextParser) Parse(data []byte) (string, error) {
	return string(data), nil
}

// PDFParser 逐页抽取PDF文本，无法解析的页跳过
type PDFParser struct{}

func (PDFParser) Extensions() []string { return []string{".pdf"} }

func (PDFParser) Parse(data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("解析PDF失败: %w", err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("获取PDF页数失败: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// WordParser 仅支持.docx
type WordParser struct{}

func (WordParser) Extensions() []string { return []string{".docx"} }

func (WordParser) Parse(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("解析Word文档失败: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		// 段落之间空行，切分时按段落保留
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// SpreadsheetParser 每个工作表一段，单元格以制表符分隔，常用于FAQ表格
type SpreadsheetParser struct{}

func (SpreadsheetParser) Extensions() []string { return []string{".xlsx"} }

func (SpreadsheetParser) Parse(data []byte) (string, error) {
	wb, err := spreadsheet.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("解析Excel文档失败: %w", err)
	}
	defer wb.Close()

	var sb strings.Builder
	for _, sheet := range wb.Sheets() {
		for _, row := range sheet.Rows() {
			cells := make([]string, 0, len(row.Cells()))
			for _, cell := range row.Cells() {
				cells = append(cells, cell.GetString())
			}
			line := strings.TrimSpace(strings.Join(cells, "\t"))
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Documents 按扩展名分派解析器
type Documents struct {
	parsers map[string]DocumentParser
}

// NewDocuments 注册内置解析器
func NewDocuments(parsers ...DocumentParser) *Documents {
	if len(parsers) == 0 {
		parsers = []DocumentParser{TextParser{}, PDFParser{}, WordParser{}, SpreadsheetParser{}}
	}
	d := &Documents{parsers: make(map[string]DocumentParser)}
	for _, p := range parsers {
		for _, ext := range p.Extensions() {
			d.parsers[ext] = p
		}
	}
	return d
}

// Supports 是否支持该文件
func (d *Documents) Supports(name string) bool {
	_, ok := d.parsers[strings.ToLower(path.Ext(name))]
	return ok
}

// Formats 支持的扩展名，已排序
func (d *Documents) Formats() []string {
	out := make([]string, 0, len(d.parsers))
	for ext := range d.parsers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Article 把一个文档转为文章。name使用/分隔的相对路径。
func (d *Documents) Article(name string, r io.Reader) (Article, error) {
	parser, ok := d.parsers[strings.ToLower(path.Ext(name))]
	if !ok {
		return Article{}, fmt.Errorf("不支持的文件格式: %s", name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Article{}, fmt.Errorf("读取文件失败: %w", err)
	}
	text, err := parser.Parse(data)
	if err != nil {
		return Article{}, fmt.Errorf("%s: %w", name, err)
	}

	title, body := splitTitle(text)
	if title == "" {
		title = titleFromName(name)
	}
	return Article{Title: title, Content: body}, nil
}

// splitTitle 首行是markdown一级标题时作为文章标题
func splitTitle(text string) (string, string) {
	trimmed := strings.TrimLeft(text, "\ufeff \t\r\n")
	first, rest, _ := strings.Cut(trimmed, "\n")
	if strings.HasPrefix(first, "# ") {
		return strings.TrimSpace(strings.TrimPrefix(first, "# ")), strings.TrimSpace(rest)
	}
	return "", strings.TrimSpace(text)
}

func titleFromName(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

// SetDocumentLicense 设置unidoc计量许可，PDF与Office解析需要
func SetDocumentLicense(key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if err := pdflicense.SetMeteredKey(key); err != nil {
		return fmt.Errorf("unipdf license: %w", err)
	}
	if err := officelicense.SetMeteredKey(key); err != nil {
		return fmt.Errorf("unioffice license: %w", err)
	}
	return nil
}
