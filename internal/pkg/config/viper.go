package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. AUTHHELPER_STORE_DRIVER.
const EnvPrefix = "AUTHHELPER"

// ErrConfigTypeRequired is returned by NewViperFromBytes without a config type.
var ErrConfigTypeRequired = errors.New("config type is required")

var errEmptyFile = errors.New("file is empty")

// Viper is a Config backed by github.com/spf13/viper. A file-backed Viper
// reloads itself when the file changes; readers always see either the old or
// the new snapshot, never a half-read one.
type Viper struct {
	cur     atomic.Pointer[viper.Viper]
	watcher *fsnotify.Watcher
}

// NewViper reads pathFile, inferring the format from its extension, and
// watches it for changes. Environment variables override file values.
func NewViper(pathFile string) (*Viper, error) {
	v, err := loadFile(pathFile)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	// the directory is watched because editors and mounted volumes replace
	// the file rather than write to it
	if err := w.Add(filepath.Dir(pathFile)); err != nil {
		return nil, errors.Join(fmt.Errorf("config watcher: %w", err), w.Close())
	}

	vc := &Viper{watcher: w}
	vc.cur.Store(v)
	go vc.watch(filepath.Clean(pathFile))

	return vc, nil
}

// NewViperFromBytes loads configuration from memory. configType is a format
// viper understands, such as "yaml" or "json".
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigTypeRequired
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	vc := &Viper{}
	vc.cur.Store(v)
	return vc, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadFile rejects an empty file: a truncate-then-write save fires an event
// before the new content lands.
func loadFile(file string) (*viper.Viper, error) {
	if st, err := os.Stat(file); err == nil && st.Size() == 0 {
		return nil, fmt.Errorf("read config %s: %w", file, errEmptyFile)
	}

	v := newViper()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", file, err)
	}
	return v, nil
}

func (vc *Viper) watch(file string) {
	for {
		select {
		case ev, ok := <-vc.watcher.Events:
			if !ok {
				return
			}
			// "..data" is the symlink kubernetes swaps when a ConfigMap changes
			if filepath.Clean(ev.Name) != file && filepath.Base(ev.Name) != "..data" {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			v, err := loadFile(file)
			if err != nil {
				slog.Error("config reload failed, keeping previous values", "path", file, "error", err)
				continue
			}
			vc.cur.Store(v)
			slog.Info("config reloaded", "path", file)

		case err, ok := <-vc.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (vc *Viper) v() *viper.Viper {
	return vc.cur.Load()
}

// IsSet reports whether key has a value.
func (vc *Viper) IsSet(key string) bool {
	return vc.v().IsSet(key)
}

// GetInt returns the value for key as int.
func (vc *Viper) GetInt(key string) int {
	return vc.v().GetInt(key)
}

// GetInt64 returns the value for key as int64.
func (vc *Viper) GetInt64(key string) int64 {
	return vc.v().GetInt64(key)
}

// GetUint returns the value for key as uint.
func (vc *Viper) GetUint(key string) uint {
	return vc.v().GetUint(key)
}

// GetUint64 returns the value for key as uint64.
func (vc *Viper) GetUint64(key string) uint64 {
	return vc.v().GetUint64(key)
}

// GetFloat64 returns the value for key as float64.
func (vc *Viper) GetFloat64(key string) float64 {
	return vc.v().GetFloat64(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v().GetBool(key)
}

// GetMillisecond returns the value for key as milliseconds.
func (vc *Viper) GetMillisecond(key string) time.Duration {
	return time.Duration(vc.v().GetInt64(key)) * time.Millisecond
}

// GetSecond returns the value for key as seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v().GetInt64(key)) * time.Second
}

// GetMinute returns the value for key as minutes.
func (vc *Viper) GetMinute(key string) time.Duration {
	return time.Duration(vc.v().GetInt64(key)) * time.Minute
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v().GetString(key)
}

// GetBinary returns the value for key decoded from base64.
func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.v().GetString(key))
	if err != nil {
		return nil
	}

	return data
}

// GetArray returns the value for key split by commas. Empty elements are dropped.
func (vc *Viper) GetArray(key string) []string {
	raw := vc.v().GetString(key)
	if raw == "" {
		return nil
	}

	out := make([]string, 0, strings.Count(raw, ",")+1)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

// GetMap returns the value for key parsed from "k:v,k:v" pairs.
func (vc *Viper) GetMap(key string) map[string]string {
	pairs := strings.Split(vc.v().GetString(key), ",")
	m := make(map[string]string)

	for _, pair := range pairs {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) == 2 {
			m[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}

	return m
}

// Close stops watching the config file.
func (vc *Viper) Close() error {
	if vc.watcher == nil {
		return nil
	}
	return vc.watcher.Close()
}
