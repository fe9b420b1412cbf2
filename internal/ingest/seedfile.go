package ingest

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile 种子文件格式
//
//	articles:
//	  - title: Refund policy
//	    url: https://help.example.com/refunds
//	    tenant: biz-1
//	    content: |
//	      ...
type SeedFile struct {
	Tenant   *string   `yaml:"tenant"`
	Articles []Article `yaml:"articles"`
}

// LoadArticles 解析种子文件。文件级tenant作为未指定租户的文章的默认值。
func LoadArticles(r io.Reader) ([]Article, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i := range seed.Articles {
		if seed.Articles[i].TenantID == nil && seed.Tenant != nil {
			tenant := *seed.Tenant
			seed.Articles[i].TenantID = &tenant
		}
	}
	return seed.Articles, nil
}

// LoadArticlesFile 从文件路径读取种子文件
func LoadArticlesFile(path string) ([]Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadArticles(f)
}
