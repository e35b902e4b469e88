// Copyright 2026 Blink Labs Software
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

package plugin_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/database/plugin"
)

func TestRegister(t *testing.T) {
	pluginName := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Name:        pluginName,
		Description: "first",
		NewFunc: func(plugin.Config) (plugin.Store, error) {
			return nil, errors.New("not implemented")
		},
	})
	// Registering the same name again replaces the entry
	plugin.Register(plugin.PluginEntry{
		Name:        pluginName,
		Description: "second",
		NewFunc: func(plugin.Config) (plugin.Store, error) {
			return nil, errors.New("not implemented")
		},
	})

	p := plugin.GetPlugin(pluginName)
	require.NotNil(t, p)
	assert.Equal(t, "second", p.Description)

	count := 0
	for _, entry := range plugin.GetPlugins() {
		if entry.Name == pluginName {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestNewUnknownPlugin(t *testing.T) {
	_, err := plugin.New("does-not-exist", plugin.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewPluginError(t *testing.T) {
	pluginName := "broken-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Name: pluginName,
		NewFunc: func(plugin.Config) (plugin.Store, error) {
			return nil, errors.New("boom")
		},
	})
	_, err := plugin.New(pluginName, plugin.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
