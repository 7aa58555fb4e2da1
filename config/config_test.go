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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/fm/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

const tomlConfig = `
[model]
n_factors = 8
n_users = 943
n_items = 1682
random_state = 42

[predict]
jobs = 4
`

func writeConfig(t *testing.T, name, text string) string {
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestUnmarshal(t *testing.T) {
	viper.Reset()
	viper.SetConfigType("toml")
	err := viper.ReadConfig(strings.NewReader(tomlConfig))
	assert.NoError(t, err)
	var config Config
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)

	// [model]
	assert.Equal(t, 8, config.Model.NFactors)
	assert.Equal(t, 943, config.Model.NUsers)
	assert.Equal(t, 1682, config.Model.NItems)
	assert.Equal(t, int64(42), config.Model.RandomState)
	// [predict]
	assert.Equal(t, 4, config.Predict.Jobs)
}

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	config, err := LoadConfig(writeConfig(t, "config.toml", tomlConfig))
	assert.NoError(t, err)
	assert.Equal(t, ModelConfig{NFactors: 8, NUsers: 943, NItems: 1682, RandomState: 42}, config.Model)
	assert.Equal(t, 4, config.Predict.Jobs)
}

func TestLoadConfig_YAML(t *testing.T) {
	viper.Reset()
	config, err := LoadConfig(writeConfig(t, "config.yaml", `
model:
  n_users: 3
  n_items: 2
`))
	assert.NoError(t, err)
	// defaults fill the rest
	assert.Equal(t, ModelConfig{NFactors: 16, NUsers: 3, NItems: 2}, config.Model)
	assert.Equal(t, 1, config.Predict.Jobs)
}

func TestLoadConfig_Env(t *testing.T) {
	viper.Reset()
	t.Setenv("FM_MODEL_N_FACTORS", "32")
	t.Setenv("FM_MODEL_RANDOM_STATE", "7")
	t.Setenv("FM_PREDICT_JOBS", "2")
	config, err := LoadConfig(writeConfig(t, "config.toml", tomlConfig))
	assert.NoError(t, err)
	assert.Equal(t, 32, config.Model.NFactors)
	assert.Equal(t, int64(7), config.Model.RandomState)
	assert.Equal(t, 2, config.Predict.Jobs)
	assert.Equal(t, 943, config.Model.NUsers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	viper.Reset()
	_, err := LoadConfig(writeConfig(t, "config.toml", `
[model]
n_users = 3
n_items = 0
`))
	var validationErrors validator.ValidationErrors
	assert.ErrorAs(t, err, &validationErrors)
	assert.Len(t, validationErrors, 1)
	assert.Equal(t, "NItems", validationErrors[0].Field())

	viper.Reset()
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	config, err := Decode(map[string]any{
		"model": map[string]any{
			"n_factors": 4,
			"N_USERS":   "3",
			"n_items":   2,
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, ModelConfig{NFactors: 4, NUsers: 3, NItems: 2}, config.Model)
	assert.Equal(t, 1, config.Predict.Jobs)
	assert.Equal(t, model.Params{
		model.NFactors:    4,
		model.NUsers:      3,
		model.NItems:      2,
		model.RandomState: int64(0),
	}, config.Model.ToParams())

	_, err = Decode(map[string]any{"model": map[string]any{"n_users": 3}})
	assert.Error(t, err)
	_, err = Decode(map[string]any{"model": map[string]any{"n_users": 3, "n_items": 2, "n_layers": 2}})
	assert.Error(t, err)
	_, err = Decode(map[string]any{"model": map[string]any{"n_users": 3, "n_items": 2}, "predict": map[string]any{"jobs": 0}})
	assert.Error(t, err)
}

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()
	assert.Equal(t, 16, config.Model.NFactors)
	assert.Equal(t, 1, config.Predict.Jobs)
	// sizes of fields must be given
	assert.Error(t, config.Validate())
}
