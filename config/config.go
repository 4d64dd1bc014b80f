// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package config carries the tool's operational defaults. Per-run
// semantics (splits, seed, paths) belong to command-line flags; this
// package owns the knobs nobody should need to touch per run.
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates operational settings for the tool.
type Config struct {
	// MaxRecordSize is the largest single input record, in bytes.
	MaxRecordSize int `mapstructure:"max_record_size"`

	// GzipLevel is the output compression level when -C is given.
	GzipLevel int `mapstructure:"gzip_level"`

	// ProgressInterval is the minimum time between progress log lines.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`

	// ChunkIndexWidth is the zero-pad width of chunk filename indexes.
	ChunkIndexWidth int `mapstructure:"chunk_index_width"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MaxRecordSize:    16 * 1024 * 1024,
		GzipLevel:        -1, // gzip default level
		ProgressInterval: time.Second,
		ChunkIndexWidth:  4,
	}
}

// Load reads configuration from environment variables. Variables use the
// prefix "TTV" and struct keys map directly, so "gzip_level" becomes
// "TTV_GZIP_LEVEL".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("TTV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
