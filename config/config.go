// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/fm/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of the factorization machine.
type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Predict PredictConfig `mapstructure:"predict"`
}

// ModelConfig is the configuration of the model.
type ModelConfig struct {
	NFactors    int   `mapstructure:"n_factors" validate:"gt=0"`
	NUsers      int   `mapstructure:"n_users" validate:"gt=0"`
	NItems      int   `mapstructure:"n_items" validate:"gt=0"`
	RandomState int64 `mapstructure:"random_state"`
}

// PredictConfig is the configuration of prediction.
type PredictConfig struct {
	Jobs int `mapstructure:"jobs" validate:"gte=1"`
}

// ToParams converts the model configuration to hyper-parameters.
func (config *ModelConfig) ToParams() model.Params {
	return model.Params{
		model.NFactors:    config.NFactors,
		model.NUsers:      config.NUsers,
		model.NItems:      config.NItems,
		model.RandomState: config.RandomState,
	}
}

// GetDefaultConfig returns the default configuration. The sizes of the
// user and item fields have no defaults.
func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			NFactors: 16,
		},
		Predict: PredictConfig{
			Jobs: 1,
		},
	}
}

// Validate checks the value of every field.
func (config *Config) Validate() error {
	validate := validator.New()
	return errors.Trace(validate.Struct(config))
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [model]
	viper.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	viper.SetDefault("model.n_users", defaultConfig.Model.NUsers)
	viper.SetDefault("model.n_items", defaultConfig.Model.NItems)
	viper.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	// [predict]
	viper.SetDefault("predict.jobs", defaultConfig.Predict.Jobs)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a TOML, YAML or JSON file. Environment
// variables prefixed by FM_ override values in the file. An empty path loads
// the defaults and the environment only.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	bindings := []configBinding{
		{"model.n_factors", "FM_MODEL_N_FACTORS"},
		{"model.n_users", "FM_MODEL_N_USERS"},
		{"model.n_items", "FM_MODEL_N_ITEMS"},
		{"model.random_state", "FM_MODEL_RANDOM_STATE"},
		{"predict.jobs", "FM_PREDICT_JOBS"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &conf, nil
}

// Decode builds a configuration from a nested mapping such as
// {"model": {"n_factors": 8, "n_users": 943, "n_items": 1682}}. Missing keys
// keep their defaults and numeric strings are converted.
func Decode(input map[string]any) (*Config, error) {
	conf := GetDefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = decoder.Decode(normalizeKeys(input)); err != nil {
		return nil, errors.Trace(err)
	}
	if err = conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return conf, nil
}

// normalizeKeys lowercases keys of nested mappings.
func normalizeKeys(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for k, v := range input {
		if m, ok := v.(map[string]any); ok {
			v = normalizeKeys(m)
		}
		output[strings.ToLower(k)] = v
	}
	return output
}
