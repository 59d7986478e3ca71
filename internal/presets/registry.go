package presets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quantlab/internal/indicators"
	"quantlab/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
)

// Preset 是一组命名的指标配置与风控参数，可被回测请求按名称引用。
type Preset struct {
	Name          string            `mapstructure:"-" json:"name"`
	Description   string            `mapstructure:"description" json:"description,omitempty"`
	Indicators    indicators.Config `mapstructure:"indicators" json:"indicators"`
	HoldDays      int               `mapstructure:"hold_days" json:"hold_days,omitempty"`
	StopLossPct   float64           `mapstructure:"stop_loss_pct" json:"stop_loss_pct,omitempty"`
	TakeProfitPct float64           `mapstructure:"take_profit_pct" json:"take_profit_pct,omitempty"`
	Compound      bool              `mapstructure:"compound" json:"compound"`
	Default       bool              `mapstructure:"default" json:"default"`
}

type fileConfig struct {
	Presets map[string]Preset `mapstructure:"presets"`
}

// Snapshot 对外暴露的只读快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Presets  map[string]Preset
}

// ChangeListener 在预设文件变更时被调用。
type ChangeListener func(Snapshot)

const presetFileSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["presets"],
	"properties": {
		"presets": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"type": "object",
				"properties": {
					"description": {"type": "string"},
					"indicators": {"type": "object"},
					"hold_days": {"type": "integer", "minimum": 1},
					"stop_loss_pct": {"type": "number", "minimum": 0},
					"take_profit_pct": {"type": "number", "minimum": 0},
					"compound": {"type": "boolean"},
					"default": {"type": "boolean"}
				}
			}
		}
	}
}`

var presetSchemaCompiled = jsonschema.MustCompileString("presets.json", presetFileSchema)

// Registry 从 YAML 文件加载策略预设，并监听热更新。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取预设文件并开始监听 FS 事件。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("presets registry 需要文件路径")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取预设文件失败: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("[presets] 重载失败 (%s): %v", evt.Name, err)
			return
		}
		r.notify()
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) reload() error {
	if err := r.v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取预设文件失败: %w", err)
	}
	if err := validateSettings(r.v.AllSettings()); err != nil {
		return fmt.Errorf("预设文件校验失败: %w", err)
	}
	var fc fileConfig
	if err := r.v.Unmarshal(&fc); err != nil {
		return fmt.Errorf("解析预设文件失败: %w", err)
	}
	presets := make(map[string]Preset, len(fc.Presets))
	for name, p := range fc.Presets {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		p.Name = key
		p.Indicators.Normalize()
		if err := p.Indicators.Validate(); err != nil {
			return fmt.Errorf("预设 %s 指标配置非法: %w", key, err)
		}
		presets[key] = p
	}
	if len(presets) == 0 {
		return fmt.Errorf("预设文件 %s 不包含任何预设", r.path)
	}

	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Presets:  presets,
	}
	r.mu.Unlock()
	logger.Infof("[presets] 已加载 %d 个策略预设（version=%d）", len(presets), r.snapshot.Version)
	return nil
}

// validateSettings 把 viper 的原始配置转成 JSON 值后过一遍 schema。
func validateSettings(settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	return presetSchemaCompiled.Validate(generic)
}

// Snapshot 返回当前快照（presets 为浅拷贝，Preset 本身是值类型）。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Subscribe 注册监听器，并立即异步收到一次完整快照。
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	snap := cloneSnapshot(r.snapshot)
	r.mu.Unlock()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("[presets] listener panic: %v", rec)
			}
		}()
		fn(snap)
	}()
}

func (r *Registry) notify() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("[presets] listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

// Resolve 按名称查找预设（大小写不敏感）。
func (r *Registry) Resolve(name string) (Preset, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Preset{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Presets[key]
	return p, ok
}

// Default 返回标记为 default 的预设；没有则返回 false。
func (r *Registry) Default() (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.snapshot.Presets {
		if p.Default {
			return p, true
		}
	}
	return Preset{}, false
}

// Names 返回按字典序排序的预设名列表。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshot.Presets))
	for name := range r.snapshot.Presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{Version: s.Version, LoadedAt: s.LoadedAt}
	if s.Presets != nil {
		out.Presets = make(map[string]Preset, len(s.Presets))
		for k, v := range s.Presets {
			out.Presets[k] = v
		}
	}
	return out
}
