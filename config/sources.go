package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// JsonFileSource JSON 文件配置源
type JsonFileSource struct {
	Path     string
	Optional bool
}

func (s *JsonFileSource) Name() string {
	return fmt.Sprintf("JsonFile(%s)", s.Path)
}

func (s *JsonFileSource) Load(context.Context) (map[string]any, error) {
	return readFile(s.Path, s.Optional, json.Unmarshal)
}

// YamlFileSource YAML 文件配置源
type YamlFileSource struct {
	Path     string
	Optional bool
}

func (s *YamlFileSource) Name() string {
	return fmt.Sprintf("YamlFile(%s)", s.Path)
}

func (s *YamlFileSource) Load(context.Context) (map[string]any, error) {
	return readFile(s.Path, s.Optional, yaml.Unmarshal)
}

func readFile(path string, optional bool, unmarshal func([]byte, any) error) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	result := make(map[string]any)
	if err := unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return result, nil
}

// EnvironmentVariableSource 环境变量配置源。
// 前缀与变量名之间以下划线分隔，APP 与 APP_ 等价。
// 去掉前缀后转为小写，双下划线表示层级：APP_LIFECYCLE__PRELOAD -> lifecycle:preload。
type EnvironmentVariableSource struct {
	Prefix string
	// Environ 默认为 os.Environ
	Environ func() []string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load(context.Context) (map[string]any, error) {
	environ := s.Environ
	if environ == nil {
		environ = os.Environ
	}

	prefix := ""
	if s.Prefix != "" {
		prefix = strings.TrimSuffix(s.Prefix, "_") + "_"
	}

	result := make(map[string]any)
	for _, env := range environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if key, ok = strings.CutPrefix(key, prefix); !ok {
			continue
		}
		key = strings.ToLower(key)
		if key == "" {
			continue
		}
		setNestedValue(result, strings.Split(key, "__"), parseScalar(value))
	}
	return result, nil
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load(context.Context) (map[string]any, error) {
	result := make(map[string]any)
	mergeMaps(result, s.Data)
	return result, nil
}

// setNestedValue 按路径写入值，map 值与已有节合并
func setNestedValue(data map[string]any, path []string, value any) {
	current := data
	for _, part := range path[:len(path)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	last := path[len(path)-1]
	if m, ok := value.(map[string]any); ok {
		if existing, ok := current[last].(map[string]any); ok {
			mergeMaps(existing, m)
			return
		}
	}
	current[last] = value
}

// parseScalar 将字符串转换为 int、float 或 bool，都不匹配时保持原样
func parseScalar(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
