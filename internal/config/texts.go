package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ToolTexts holds per-language tool descriptions shown to hosts. An empty
// description keeps the tool's built-in text.
type ToolTexts struct {
	Language     string                       `yaml:"language"`
	Descriptions map[string]map[string]string `yaml:"descriptions"`
}

// DefaultToolTexts returns default tool texts. English relies on the
// built-in descriptions.
func DefaultToolTexts() *ToolTexts {
	return &ToolTexts{
		Language: "en",
		Descriptions: map[string]map[string]string{
			"en": {},
			"zh": {
				"exa_search":   "使用 Exa 搜索网页。神经搜索理解查询的含义，关键词搜索匹配词语。返回按相关度排序的页面，可附带正文和高亮片段。",
				"exa_answer":   "使用 Exa 回答问题。返回生成的答案以及引用的页面。",
				"exa_similar":  "使用 Exa 查找与给定网址相似的页面。",
				"exa_contents": "使用 Exa 获取网页内容。支持多个网址，并按输入顺序为每个网址返回一项结果。",
			},
		},
	}
}

// ToolTextsPath returns the tool texts file path
func ToolTextsPath() (string, error) {
	// First check if there's a config/tools.yaml in current working directory
	cwd, err := os.Getwd()
	if err == nil {
		localPath := filepath.Join(cwd, "config", "tools.yaml")
		if _, err := os.Stat(localPath); err == nil {
			return localPath, nil
		}
	}

	// Fall back to user config directory
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tools.yaml"), nil
}

// LoadToolTexts loads tool texts from file, falling back to the defaults
// when no file exists.
func LoadToolTexts() (*ToolTexts, error) {
	path, err := ToolTextsPath()
	if err != nil {
		return DefaultToolTexts(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultToolTexts(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tool texts: %w", err)
	}

	texts := DefaultToolTexts()
	if err := yaml.Unmarshal(data, texts); err != nil {
		return nil, fmt.Errorf("failed to parse tool texts: %w", err)
	}
	return texts, nil
}

// ForLanguage returns the descriptions for the configured language,
// falling back to English.
func (t *ToolTexts) ForLanguage() map[string]string {
	if texts, ok := t.Descriptions[t.Language]; ok {
		return texts
	}
	return t.Descriptions["en"]
}
