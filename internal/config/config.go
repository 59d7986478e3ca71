package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取 YAML 配置并返回校验后的 Config。
// 支持 include 列表：被包含的文件先合并，主文件最后合并（同名键以主文件为准），
// 用户显式写入的键（含 false/0）不会被默认值覆盖。
func Load(path string) (*Config, error) {
	files, err := expandIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeFileInto(v, file); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 (%s): %w", file, err)
		}
	}
	var cfg Config
	// 结构体沿用 toml 标签，解码时显式指定。
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	setKeys := make(keySet)
	markSettingKeys("", v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeFileInto(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

// expandIncludes 展开 include 引用，返回按合并顺序排列的文件列表。
func expandIncludes(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("配置路径不能为空")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	stack := make(map[string]bool)
	files, err := walkIncludeTree(abs, seen, stack)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []string{abs}, nil
	}
	return files, nil
}

func walkIncludeTree(path string, seen, stack map[string]bool) ([]string, error) {
	path = filepath.Clean(path)
	if stack[path] {
		return nil, fmt.Errorf("include 存在循环引用: %s", path)
	}
	if seen[path] {
		return nil, nil
	}
	stack[path] = true
	includes, err := readIncludes(path)
	if err != nil {
		return nil, fmt.Errorf("解析 include 失败 (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	var ordered []string
	for _, inc := range includes {
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(dir, inc)
		}
		sub, err := walkIncludeTree(incPath, seen, stack)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}
	delete(stack, path)
	seen[path] = true
	return append(ordered, path), nil
}

func readIncludes(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	var items []any
	switch val := raw.(type) {
	case []any:
		items = val
	case []string:
		for _, s := range val {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("include 必须是字符串数组")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include 只支持字符串条目")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

// markSettingKeys 把配置树拍平成 "a.b.c" 形式的键集合，供默认值判断"用户是否写过"。
func markSettingKeys(prefix string, node any, dest keySet) {
	if dest == nil {
		return
	}
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			if next := joinKey(prefix, k); next != prefix {
				markSettingKeys(next, v, dest)
			}
		}
	case map[interface{}]interface{}:
		for k, v := range val {
			keyStr, ok := k.(string)
			if !ok {
				continue
			}
			if next := joinKey(prefix, keyStr); next != prefix {
				markSettingKeys(next, v, dest)
			}
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			markSettingKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}

func joinKey(prefix, key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return prefix
	}
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
