// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jit

import (
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// AutotuneFile is the content of a file declaring autotuning configurations:
//
//	key = ["n"]
//
//	[[config]]
//	num_warps = 4
//	[config.meta]
//	BLOCK = 128
//
// Integer meta-parameters are decoded as int, like the ones written in Go.
type AutotuneFile struct {
	// Key are the names of the kernel parameters forming the runtime key.
	Key []string `toml:"key"`
	// Configs are the candidate configurations.
	Configs []Config `toml:"config"`
}

// Decorator returns a decorator autotuning kernels with the configurations of the file.
func (f *AutotuneFile) Decorator() Decorator {
	return Autotune(f.Configs, f.Key...)
}

func checkDecoded(md toml.MetaData, f *AutotuneFile) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.Errorf("unknown fields: %s", strings.Join(keys, ", "))
	}
	for i, cfg := range f.Configs {
		if cfg.NumWarps < 0 {
			return errors.Errorf("config %d: invalid number of warps %d", i, cfg.NumWarps)
		}
		if cfg.Meta == nil {
			f.Configs[i].Meta = Meta{}
		}
		for name, v := range cfg.Meta {
			conv, err := fromTOML(v)
			if err != nil {
				return errors.Wrapf(err, "config %d: meta-parameter %s", i, name)
			}
			cfg.Meta[name] = conv
		}
	}
	return nil
}

// fromTOML converts the 64-bit integers decoded by TOML to int.
func fromTOML(v any) (any, error) {
	switch vT := v.(type) {
	case int64:
		return safecast.Conv[int](vT)
	case []any:
		vals := make([]any, len(vT))
		for i, x := range vT {
			var err error
			if vals[i], err = fromTOML(x); err != nil {
				return nil, err
			}
		}
		return vals, nil
	}
	return v, nil
}

// LoadConfigs reads autotuning configurations from a TOML file.
func LoadConfigs(path string) (*AutotuneFile, error) {
	f := &AutotuneFile{}
	md, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode autotuning configurations %s", path)
	}
	if err := checkDecoded(md, f); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return f, nil
}

// ParseConfigs reads autotuning configurations from a TOML document.
func ParseConfigs(data string) (*AutotuneFile, error) {
	f := &AutotuneFile{}
	md, err := toml.Decode(data, f)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode autotuning configurations")
	}
	if err := checkDecoded(md, f); err != nil {
		return nil, err
	}
	return f, nil
}
