// Package config loads warp client options from TOML or YAML files,
// merging them over the documented defaults.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"

	"github.com/go-warp/warp"
	"github.com/go-warp/warp/retry"
	httptransport "github.com/go-warp/warp/transport/http"
)

// Duration is a time.Duration that unmarshals from strings like "1.5s" in
// both TOML and YAML documents.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler; the YAML loader routes
// through JSON.
func (d *Duration) UnmarshalJSON(data []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Duration.String() + `"`), nil
}

// TargetConfig names the bound interface and its host.
type TargetConfig struct {
	Type string `toml:"type" json:"type"`
	Host string `toml:"host" json:"host"`
	Name string `toml:"name" json:"name"`
}

// TransportConfig carries the HTTP transport knobs.
type TransportConfig struct {
	DialTimeout     Duration `toml:"dial_timeout" json:"dial_timeout"`
	ResponseTimeout Duration `toml:"response_timeout" json:"response_timeout"`
	RequestTimeout  Duration `toml:"request_timeout" json:"request_timeout"`
	MaxBodySize     int64    `toml:"max_body_size" json:"max_body_size"`
}

// RetryConfig carries the retry policy knobs.
type RetryConfig struct {
	MaxRetries      int      `toml:"max_retries" json:"max_retries"`
	InitialInterval Duration `toml:"initial_interval" json:"initial_interval"`
	MaxInterval     Duration `toml:"max_interval" json:"max_interval"`
	Multiplier      float64  `toml:"multiplier" json:"multiplier"`
}

// LogConfig carries the logging knobs.
type LogConfig struct {
	// Level is one of "none", "basic", "headers", "full".
	Level string `toml:"level" json:"level"`
}

// File is the root of a warp client configuration document.
type File struct {
	Target    TargetConfig    `toml:"target" json:"target"`
	Transport TransportConfig `toml:"transport" json:"transport"`
	Retry     RetryConfig     `toml:"retry" json:"retry"`
	Log       LogConfig       `toml:"log" json:"log"`
}

// Default returns the configuration matching the documented option
// defaults.
func Default() *File {
	return &File{
		Transport: TransportConfig{
			DialTimeout:     Duration{httptransport.DefaultDialTimeout},
			ResponseTimeout: Duration{httptransport.DefaultResponseTimeout},
			RequestTimeout:  Duration{httptransport.DefaultRequestTimeout},
			MaxBodySize:     httptransport.DefaultMaxBodySize,
		},
		Retry: RetryConfig{
			MaxRetries:      3,
			InitialInterval: Duration{100 * time.Millisecond},
			MaxInterval:     Duration{2 * time.Second},
			Multiplier:      2,
		},
		Log: LogConfig{Level: "none"},
	}
}

// Load reads a TOML (.toml) or YAML (.yaml, .yml) file and merges it over
// the defaults; fields absent from the file keep their default value.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := &File{}
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		if err := toml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}
	if err := mergo.Merge(f, Default()); err != nil {
		return nil, fmt.Errorf("config: merging defaults: %w", err)
	}
	return f, nil
}

// BuildTarget creates the warp.Target declared by the file.
func (f *File) BuildTarget() (warp.Target, error) {
	if f.Target.Name != "" {
		return warp.NewNamedTarget(f.Target.Type, f.Target.Host, f.Target.Name)
	}
	return warp.NewTarget(f.Target.Type, f.Target.Host)
}

// Options translates the file into warp options: a tuned HTTP transport, a
// retry policy factory and a log level.
func (f *File) Options() []warp.Option {
	client := httptransport.New(
		httptransport.WithDialTimeout(f.Transport.DialTimeout.Duration),
		httptransport.WithResponseTimeout(f.Transport.ResponseTimeout.Duration),
		httptransport.WithRequestTimeout(f.Transport.RequestTimeout.Duration),
		httptransport.WithMaxBodySize(f.Transport.MaxBodySize),
	)
	retryOpts := []retry.Option{
		retry.WithMaxRetries(f.Retry.MaxRetries),
		retry.WithInitialInterval(f.Retry.InitialInterval.Duration),
		retry.WithMaxInterval(f.Retry.MaxInterval.Duration),
		retry.WithMultiplier(f.Retry.Multiplier),
	}
	return []warp.Option{
		warp.WithClient(client),
		warp.WithRetryer(func() warp.Retryer { return retry.New(retryOpts...) }),
		warp.WithLogLevel(ParseLevel(f.Log.Level)),
	}
}

// ParseLevel maps a level name to its warp.LogLevel, defaulting to
// warp.LogNone.
func ParseLevel(level string) warp.LogLevel {
	switch strings.ToLower(level) {
	case "basic":
		return warp.LogBasic
	case "headers":
		return warp.LogHeaders
	case "full":
		return warp.LogFull
	default:
		return warp.LogNone
	}
}

// Watch reloads path whenever it changes and hands the result to fn. It
// blocks until ctx is cancelled or the watcher fails. Reload errors are
// reported to fn's error argument and do not stop the watch.
func Watch(ctx context.Context, path string, fn func(*File, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops the
	// watch when it is attached to the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			eventPath, err := filepath.Abs(event.Name)
			if err != nil || eventPath != abs {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				fn(Load(path))
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}
