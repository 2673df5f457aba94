// Copyright 2025 ZUB3C
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

package vector

import (
	"fmt"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
)

// New builds the provider selected by the config.
func New(cfg config.VectorConfig) (Provider, error) {
	switch cfg.Provider {
	case "qdrant":
		return NewQdrantProvider(QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey,
			UseTLS: cfg.Qdrant.UseTLS,
		})
	case "chromem", "":
		return NewChromemProvider(ChromemConfig{
			PersistPath: cfg.Chromem.PersistPath,
			Compress:    cfg.Chromem.Compress,
		})
	default:
		return nil, fmt.Errorf("unsupported vector provider: %s", cfg.Provider)
	}
}
