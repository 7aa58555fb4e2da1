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

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/fm/cmd/version"
	"github.com/gorse-io/fm/model"
	"github.com/gorse-io/fm/model/fm"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

const testConfig = `
[model]
n_factors = 4
n_users = 3
n_items = 2
random_state = 1

[predict]
jobs = 2
`

func execute(t *testing.T, args ...string) (string, error) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	var buf bytes.Buffer
	cmd := newCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append(args, "--config", path))
	err := cmd.Execute()
	return buf.String(), err
}

func testModel(t *testing.T) *fm.FM {
	m, err := fm.NewFM(model.Params{
		model.NFactors:    4,
		model.NUsers:      3,
		model.NItems:      2,
		model.RandomState: int64(1),
	})
	assert.NoError(t, err)
	return m
}

func TestScore(t *testing.T) {
	output, err := execute(t, "score", "--users", "0,1,2", "--items", "0,1,0")
	assert.NoError(t, err)
	scores := testModel(t).Predict([]int32{0, 1, 2}, []int32{0, 1, 0})
	for _, score := range scores {
		assert.Contains(t, output, fmt.Sprintf("%.6f", score))
	}

	_, err = execute(t, "score", "--users", "0,1", "--items", "0")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = execute(t, "score", "--users", "3", "--items", "0")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestExplain(t *testing.T) {
	output, err := execute(t, "explain", "--user", "2", "--item", "1")
	assert.NoError(t, err)
	e := testModel(t).Explain(2, 1)
	assert.Contains(t, output, "interaction")
	assert.Contains(t, output, fmt.Sprintf("%.6f", e.Interaction))
	assert.Contains(t, output, fmt.Sprintf("%.6f", e.Score()))

	_, err = execute(t, "explain", "--user", "0", "--item", "2")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestVersion(t *testing.T) {
	output, err := execute(t, "version")
	assert.NoError(t, err)
	assert.Equal(t, version.BuildInfo(), output)
}
