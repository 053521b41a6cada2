// Copyright 2026 cellanno Project Authors
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

package train

// Config carries trainer settings. Zero values are filled by NewConfig;
// setters chain so callers can override selectively.
type Config struct {
	TrainSize       float64 // fraction of cells used for fitting
	TestSize        float64 // held-out fraction; zero takes the remainder
	BatchSize       int
	NEpochsKLWarmup int // epochs over which the KL weight anneals to 1
	NIterKLWarmup   int // iterations instead; takes precedence when positive
	EvalFrequency   int // evaluate the held-out split every this many epochs
	Seed            int64
	Verbose         bool
}

func NewConfig() *Config {
	return &Config{
		TrainSize:       0.9,
		BatchSize:       128,
		NEpochsKLWarmup: 400,
		EvalFrequency:   10,
		Verbose:         true,
	}
}

func (c *Config) SetTrainSize(trainSize float64) *Config {
	c.TrainSize = trainSize
	return c
}

func (c *Config) SetTestSize(testSize float64) *Config {
	c.TestSize = testSize
	return c
}

func (c *Config) SetBatchSize(batchSize int) *Config {
	c.BatchSize = batchSize
	return c
}

func (c *Config) SetKLWarmupEpochs(epochs int) *Config {
	c.NEpochsKLWarmup = epochs
	return c
}

func (c *Config) SetKLWarmupIters(iterations int) *Config {
	c.NIterKLWarmup = iterations
	return c
}

func (c *Config) SetEvalFrequency(epochs int) *Config {
	c.EvalFrequency = epochs
	return c
}

func (c *Config) SetSeed(seed int64) *Config {
	c.Seed = seed
	return c
}

func (c *Config) SetVerbose(verbose bool) *Config {
	c.Verbose = verbose
	return c
}

// klWeight anneals linearly from 1/warmup to 1 over the warmup window. With
// NIterKLWarmup set the window is counted in optimizer steps, otherwise in
// epochs.
func (c *Config) klWeight(epoch, iteration int) float32 {
	if c.NIterKLWarmup > 0 {
		if iteration >= c.NIterKLWarmup {
			return 1
		}
		return float32(iteration+1) / float32(c.NIterKLWarmup)
	}
	if c.NEpochsKLWarmup <= 0 || epoch >= c.NEpochsKLWarmup {
		return 1
	}
	return float32(epoch+1) / float32(c.NEpochsKLWarmup)
}
