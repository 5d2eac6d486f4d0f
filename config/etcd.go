package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// EtcdOptions etcd 配置选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 读取超时时间（默认 5 秒）
	DialTimeout time.Duration // 拨号超时时间（默认 5 秒）
}

// EtcdSource etcd 配置源。键中的 / 表示层级，值按 YAML（兼容 JSON）解析，失败则作为字符串。
type EtcdSource struct {
	Options EtcdOptions
	// Client 为 nil 时每次加载创建临时客户端；外部传入的客户端不会被关闭
	Client *clientv3.Client
}

// NewEtcdSource 创建 etcd 配置源并补全默认值
func NewEtcdSource(opts EtcdOptions) *EtcdSource {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return &EtcdSource{Options: opts}
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) Load(ctx context.Context) (map[string]any, error) {
	cli := s.Client
	if cli == nil {
		var err error
		cli, err = clientv3.New(clientv3.Config{
			Endpoints:   s.Options.Endpoints,
			Username:    s.Options.Username,
			Password:    s.Options.Password,
			DialTimeout: s.Options.DialTimeout,
			Context:     ctx,
		})
		if err != nil {
			return nil, fmt.Errorf("create etcd client: %w", err)
		}
		defer cli.Close()
	}

	if s.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Options.Timeout)
		defer cancel()
	}

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", prefix, err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		s.put(result, string(kv.Key), kv.Value)
	}
	return result, nil
}

// put 将一个 etcd 键值写入 result
func (s *EtcdSource) put(result map[string]any, key string, raw []byte) {
	key = strings.TrimPrefix(key, s.Options.Prefix)
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return
	}
	setNestedValue(result, parts, decodeValue(raw))
}

func decodeValue(raw []byte) any {
	var value any
	if err := yaml.Unmarshal(raw, &value); err != nil || value == nil {
		return string(raw)
	}
	return value
}
