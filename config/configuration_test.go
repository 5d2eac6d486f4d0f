package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, b *ConfigurationBuilder) *Root {
	t.Helper()
	root, err := b.Build(context.Background())
	require.NoError(t, err)
	return root
}

func TestLaterSourcesOverride(t *testing.T) {
	root := build(t, NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"server": map[string]any{"host": "localhost", "port": 8080},
			"debug":  false,
		}).
		AddInMemory(map[string]any{
			"server": map[string]any{"port": 9090},
			"debug":  true,
		}))

	assert.Equal(t, "localhost", root.Get("server:host"))
	assert.Equal(t, "9090", root.Get("server.port"))

	port, err := root.GetInt("server:port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)

	debug, err := root.GetBool("debug")
	require.NoError(t, err)
	assert.True(t, debug)

	assert.Equal(t, "fallback", root.GetWithDefault("server:missing", "fallback"))
	assert.Equal(t, []string{"InMemory", "InMemory"}, root.Sources())
}

func TestMissingKeys(t *testing.T) {
	root := build(t, NewConfigurationBuilder())

	assert.Empty(t, root.Get("nope"))
	_, err := root.GetInt("nope")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = root.GetBool("a:b")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, root.Bind("nope", &struct{}{}), ErrKeyNotFound)
	assert.Empty(t, root.GetSection("nope").GetAll())
}

func TestGetDuration(t *testing.T) {
	root := build(t, NewConfigurationBuilder().AddInMemory(map[string]any{
		"a": "1500ms",
		"b": 3,
		"c": []int{1},
	}))

	d, err := root.GetDuration("a")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = root.GetDuration("b")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	_, err = root.GetDuration("c")
	assert.Error(t, err)
}

func TestSectionAndBind(t *testing.T) {
	root := build(t, NewConfigurationBuilder().AddInMemory(map[string]any{
		"database": map[string]any{
			"primary": map[string]any{"dsn": "file::memory:", "max_open": 4},
		},
	}))

	type dbOptions struct {
		DSN     string `yaml:"dsn"`
		MaxOpen int    `yaml:"max_open"`
	}

	section := root.GetSection("database")
	assert.Equal(t, "file::memory:", section.Get("primary:dsn"))

	var opts dbOptions
	require.NoError(t, section.Bind("primary", &opts))
	assert.Equal(t, dbOptions{DSN: "file::memory:", MaxOpen: 4}, opts)

	opts, err := Section[dbOptions](root, "database.primary")
	require.NoError(t, err)
	assert.Equal(t, 4, opts.MaxOpen)
}

func TestGetAllReturnsCopy(t *testing.T) {
	root := build(t, NewConfigurationBuilder().AddInMemory(map[string]any{
		"a": map[string]any{"b": 1},
	}))

	all := root.GetAll()
	all["a"].(map[string]any)["b"] = 2
	assert.Equal(t, "1", root.Get("a:b"))
}

func TestFileSources(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "app.yaml")
	jsonPath := filepath.Join(dir, "app.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte("logging:\n  level: debug\n  format: json\n"), 0o600))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"logging": {"level": "warn"}, "port": 80}`), 0o600))

	root := build(t, NewConfigurationBuilder().
		AddYamlFile(yamlPath).
		AddJsonFile(jsonPath).
		AddYamlFile(filepath.Join(dir, "missing.yaml"), true))

	assert.Equal(t, "warn", root.Get("logging:level"))
	assert.Equal(t, "json", root.Get("logging:format"))
	port, err := root.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 80, port)

	_, err = NewConfigurationBuilder().AddYamlFile(filepath.Join(dir, "missing.yaml")).Build(context.Background())
	assert.Error(t, err)
}

func TestEnvironmentVariableSource(t *testing.T) {
	src := &EnvironmentVariableSource{
		Prefix: "APP_",
		Environ: func() []string {
			return []string{
				"APP_LOGGING__LEVEL=debug",
				"APP_LIFECYCLE__LOG_DESTROY_FAILURES=false",
				"APP_WORKERS=4",
				"OTHER_VALUE=x",
				"broken",
			}
		},
	}

	root := build(t, NewConfigurationBuilder().Add(src))
	assert.Equal(t, "debug", root.Get("logging:level"))
	enabled, err := root.GetBool("lifecycle.log_destroy_failures")
	require.NoError(t, err)
	assert.False(t, enabled)
	workers, err := root.GetInt("workers")
	require.NoError(t, err)
	assert.Equal(t, 4, workers)
	assert.Empty(t, root.Get("other_value"))
}

func TestEnvironmentPrefixNeedsSeparator(t *testing.T) {
	src := &EnvironmentVariableSource{
		Prefix: "APP",
		Environ: func() []string {
			return []string{"APP_MODE=prod", "APPLE_X=1", "APP=bare"}
		},
	}

	root := build(t, NewConfigurationBuilder().Add(src))
	assert.Equal(t, "prod", root.Get("mode"))
	assert.Equal(t, map[string]any{"mode": "prod"}, root.GetAll())
}

func TestEtcdKeysBecomeSections(t *testing.T) {
	src := NewEtcdSource(EtcdOptions{Endpoints: []string{"127.0.0.1:2379"}, Prefix: "/app"})
	assert.Equal(t, 5*time.Second, src.Options.Timeout)
	assert.Equal(t, "Etcd([127.0.0.1:2379])", src.Name())

	result := make(map[string]any)
	src.put(result, "/app/logging/level", []byte("debug"))
	src.put(result, "/app/database", []byte(`{"primary": {"dsn": "x"}}`))
	src.put(result, "/app/database/primary/max_open", []byte("8"))
	src.put(result, "/app/raw", []byte("a: [b"))
	src.put(result, "/app", []byte("ignored"))

	root := build(t, NewConfigurationBuilder().AddInMemory(result))
	assert.Equal(t, "debug", root.Get("logging:level"))
	assert.Equal(t, "x", root.Get("database:primary:dsn"))
	n, err := root.GetInt("database:primary:max_open")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "a: [b", root.Get("raw"))
}

type flakySource struct {
	mu   sync.Mutex
	data map[string]any
	err  error
}

func (s *flakySource) Name() string { return "flaky" }

func (s *flakySource) Load(context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]any)
	mergeMaps(out, s.data)
	return out, nil
}

func (s *flakySource) set(data map[string]any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data, s.err = data, err
}

func TestReload(t *testing.T) {
	src := &flakySource{data: map[string]any{"feature": map[string]any{"on": false}}}
	root := build(t, NewConfigurationBuilder().Add(src))
	section := root.GetSection("feature")
	assert.Equal(t, "false", section.Get("on"))

	src.set(map[string]any{"feature": map[string]any{"on": true}}, nil)
	require.NoError(t, root.Reload(context.Background()))
	assert.Equal(t, "true", section.Get("on"))

	boom := errors.New("unavailable")
	src.set(nil, boom)
	assert.ErrorIs(t, root.Reload(context.Background()), boom)
	assert.Equal(t, "true", section.Get("on"))
}

func TestLoadSettings(t *testing.T) {
	root := build(t, NewConfigurationBuilder())
	s, err := LoadSettings(root)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	root = build(t, NewConfigurationBuilder().AddInMemory(map[string]any{
		"logging":   map[string]any{"level": "debug", "outputs": []any{"stderr"}},
		"lifecycle": map[string]any{"preload": false},
	}))
	s, err = LoadSettings(root)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, "console", s.Logging.Format)
	assert.Equal(t, []string{"stderr"}, s.Logging.Outputs)
	assert.False(t, s.Lifecycle.Preload)
	assert.True(t, s.Lifecycle.LogDestroyFailures)

	root = build(t, NewConfigurationBuilder().AddInMemory(map[string]any{
		"lifecycle": map[string]any{"preload": "sometimes"},
	}))
	_, err = LoadSettings(root)
	assert.Error(t, err)
}

func BenchmarkConfigGet(b *testing.B) {
	root, _ := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
	}).Build(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		root.Get("server:host")
	}
}
