package lifecycle

import "github.com/gocrud/infra/logging"

type options struct {
	discoverer  Discoverer
	manifests   []*Manifest
	logger      logging.Logger
	logFailures bool
}

// Option 配置 MetadataCache
type Option func(*options)

// WithDiscoverer 替换默认的 TagDiscoverer
func WithDiscoverer(d Discoverer) Option {
	return func(o *options) {
		o.discoverer = d
	}
}

// WithManifest 追加显式钩子清单，在标记字段之后参与发现
func WithManifest(m *Manifest) Option {
	return func(o *options) {
		o.manifests = append(o.manifests, m)
	}
}

// WithLogger 设置日志记录器，用于记录被吞掉的销毁钩子错误
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDestroyFailureLogging 是否记录销毁钩子的失败，默认开启
func WithDestroyFailureLogging(enabled bool) Option {
	return func(o *options) {
		o.logFailures = enabled
	}
}
