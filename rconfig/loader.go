/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package rconfig

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	mapstruct "github.com/go-viper/mapstructure/v2"
	spfvpr "github.com/spf13/viper"

	liberr "github.com/sabouaram/fibercore/errors"
	libdur "github.com/sabouaram/fibercore/duration"
	liblog "github.com/sabouaram/fibercore/logger"
	loglvl "github.com/sabouaram/fibercore/logger/level"
)

// durationType is the reflect.Type stringToDurationHookFunc matches
// against; ReadTimeout/WriteTimeout are the only fields of this type in
// the decoded Config today, but the hook applies to any libdur.Duration
// field a future one adds.
var durationType = reflect.TypeOf(libdur.Duration(0))

// stringToDurationHookFunc decodes a YAML/env string like "1d12h" into a
// libdur.Duration the way mapstruct.StringToTimeDurationHookFunc decodes
// into a time.Duration -- that built-in hook only matches time.Duration's
// own reflect.Type, so libdur.Duration needs this one alongside it.
func stringToDurationHookFunc(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != durationType {
		return data, nil
	}
	return libdur.Parse(data.(string))
}

// Loader wraps a *viper.Viper with the file/home/env discovery, default
// fallback source, decode-hook registration and validated decode a
// fibercore process uses to turn a config file into a Config. A zero
// value is not usable; build one with New.
type Loader interface {
	// SetConfigFile pins the exact path to read; when set, home-dir
	// discovery is bypassed. Env-var overrides still apply if
	// SetEnvVarsPrefix was also called.
	SetConfigFile(path string)

	// SetHomeBaseName enables home-directory discovery of "name.yaml"
	// (or any extension Viper supports) under $HOME and the current
	// working directory.
	SetHomeBaseName(name string)

	// SetEnvVarsPrefix enables environment-variable overrides of every
	// decoded key, upper-cased and prefixed, e.g. FIBERCORE_DOMAIN_WORKERS.
	SetEnvVarsPrefix(prefix string)

	// SetDefaultConfig registers a fallback reader used when no config
	// file is found by either SetConfigFile or home-dir discovery.
	SetDefaultConfig(fn func() io.Reader)

	// HookRegister adds a mapstructure decode hook run ahead of the
	// built-in string-to-duration hook; HookReset clears every
	// registered hook back to just that built-in.
	HookRegister(fn mapstruct.DecodeHookFunc)
	HookReset()

	// Load reads the configured source, decodes it into a Config and
	// validates the result, returning the validated Config on success.
	Load() (*Config, error)

	// Watch arms Viper's native file watcher (fsnotify-backed) and
	// invokes fn with a freshly decoded and validated Config every time
	// the backing file changes on disk. It returns ErrorWatchUnsupported
	// immediately if Load never read from an on-disk file.
	Watch(ctx context.Context, fn func(cfg *Config, err error)) error

	// Viper is the escape hatch to the underlying instance, for callers
	// that need a Viper feature this wrapper doesn't expose directly.
	Viper() *spfvpr.Viper
}

type loader struct {
	mu sync.Mutex

	log liblog.FuncLog
	v   *spfvpr.Viper

	configFile string
	homeBase   string
	envPrefix  string
	defaultFn  func() io.Reader

	hooks []mapstruct.DecodeHookFunc

	usedFile bool
}

// New builds a Loader around a fresh viper.Viper instance. log may be nil,
// in which case Load/Watch run silently.
func New(log liblog.FuncLog) Loader {
	return &loader{
		log:   log,
		v:     spfvpr.New(),
		hooks: defaultHooks(),
	}
}

func defaultHooks() []mapstruct.DecodeHookFunc {
	return []mapstruct.DecodeHookFunc{
		mapstruct.StringToTimeDurationHookFunc(),
		stringToDurationHookFunc,
	}
}

func (l *loader) logEntry(lvl loglvl.Level, msg string) {
	if l.log == nil {
		return
	}
	if lg := l.log(); lg != nil {
		lg.Entry(lvl, msg).Log()
	}
}

func (l *loader) SetConfigFile(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configFile = path
	l.v.SetConfigFile(path)
}

func (l *loader) SetHomeBaseName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.homeBase = name
	l.v.SetConfigName(name)
	l.v.AddConfigPath("$HOME")
	l.v.AddConfigPath(".")
}

func (l *loader) SetEnvVarsPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.envPrefix = prefix
	l.v.SetEnvPrefix(prefix)
	l.v.AutomaticEnv()
}

func (l *loader) SetDefaultConfig(fn func() io.Reader) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaultFn = fn
}

func (l *loader) HookRegister(fn mapstruct.DecodeHookFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

func (l *loader) HookReset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = defaultHooks()
}

func (l *loader) Viper() *spfvpr.Viper { return l.v }

// read attempts the configured file (explicit path or home/env discovery)
// first, falling back to the registered default reader; it records
// whether an on-disk file actually backed the read, for Watch to check.
func (l *loader) read() error {
	err := l.v.ReadInConfig()
	if err == nil {
		l.usedFile = true
		l.logEntry(loglvl.InfoLevel, fmt.Sprintf("read config file %q", l.v.ConfigFileUsed()))
		return nil
	}

	if l.defaultFn == nil {
		return ErrorConfigFileMissing.Error(err)
	}

	r := l.defaultFn()
	if r == nil {
		return ErrorConfigFileMissing.Error(err)
	}

	l.v.SetConfigType("yaml")
	buf := new(bytes.Buffer)
	if _, cpErr := buf.ReadFrom(r); cpErr != nil {
		return ErrorConfigRead.Error(cpErr)
	}
	if mErr := l.v.MergeConfig(buf); mErr != nil {
		return ErrorConfigRead.Error(mErr)
	}
	l.usedFile = false
	l.logEntry(loglvl.WarnLevel, "no config file found, falling back to the default config source")
	return nil
}

func (l *loader) decode() (*Config, error) {
	cfg := &Config{}
	dec := spfvpr.DecodeHook(mapstruct.ComposeDecodeHookFunc(l.hooks...))
	if err := l.v.Unmarshal(cfg, dec); err != nil {
		return nil, ErrorConfigDecode.Error(err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, ErrorConfigValidate.Error(err)
	}
	if err := checkUniqueServerNames(cfg.Servers); err != nil {
		return nil, ErrorConfigValidate.Error(err)
	}
	return cfg, nil
}

// checkUniqueServerNames enforces the one validate tag can't: validator/v10
// has no built-in dive-unique check over a struct slice field.
func checkUniqueServerNames(servers []ServerConfig) error {
	seen := make(map[string]struct{}, len(servers))
	for _, s := range servers {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate server name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

func (l *loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.read(); err != nil {
		return nil, err
	}
	return l.decode()
}

func (l *loader) Watch(ctx context.Context, fn func(cfg *Config, err error)) error {
	l.mu.Lock()
	used := l.usedFile
	l.mu.Unlock()

	if !used {
		return ErrorWatchUnsupported.Error(nil)
	}
	if fn == nil {
		return ErrorParamEmpty.Error(nil)
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.logEntry(loglvl.InfoLevel, fmt.Sprintf("config file changed: %s", e.Name))

		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()

		fn(cfg, err)
	})
	l.v.WatchConfig()

	go func() {
		<-ctx.Done()
	}()
	return nil
}
