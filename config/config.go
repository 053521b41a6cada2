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

package config

import (
	"github.com/cellanno-io/cellanno/annotate"
	"github.com/cellanno-io/cellanno/model"
	"github.com/cellanno-io/cellanno/train"
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the full configuration of the annotation pipeline. Every model
// option is enumerated here; unknown dispersion or likelihood values are
// rejected by validation, never passed through.
type Config struct {
	Data  DataConfig  `mapstructure:"data"`
	Model ModelConfig `mapstructure:"model"`
	Train TrainConfig `mapstructure:"train"`
}

type DataConfig struct {
	Counts   string `mapstructure:"counts" validate:"required"`
	Sentinel string `mapstructure:"sentinel" validate:"required"`
}

type ModelConfig struct {
	NHidden        int     `mapstructure:"n_hidden" validate:"gt=0"`
	NLatent        int     `mapstructure:"n_latent" validate:"gt=0"`
	NLayers        int     `mapstructure:"n_layers" validate:"gt=0"`
	DropoutRate    float32 `mapstructure:"dropout_rate" validate:"gte=0,lt=1"`
	Dispersion     string  `mapstructure:"dispersion" validate:"oneof=gene gene-batch gene-label gene-cell"`
	GeneLikelihood string  `mapstructure:"gene_likelihood" validate:"oneof=nb zinb poisson"`
}

type TrainConfig struct {
	TrainSize            float64 `mapstructure:"train_size" validate:"gt=0,lte=1"`
	TestSize             float64 `mapstructure:"test_size" validate:"gte=0,lt=1"`
	BatchSize            int     `mapstructure:"batch_size" validate:"gt=0"`
	KLWarmupEpochs       int     `mapstructure:"kl_warmup_epochs" validate:"gte=0"`
	KLWarmupIters        int     `mapstructure:"kl_warmup_iters" validate:"gte=0"`
	EvalFrequency        int     `mapstructure:"eval_frequency" validate:"gte=0"`
	Seed                 int64   `mapstructure:"seed"`
	LearningRate         float32 `mapstructure:"learning_rate" validate:"gt=0"`
	UnsupervisedEpochs   int     `mapstructure:"unsupervised_epochs" validate:"gte=0"`
	SemiSupervisedEpochs int     `mapstructure:"semi_supervised_epochs" validate:"gte=0"`
}

func setDefault() {
	defaultHyper := model.DefaultHyperparameters()
	viper.SetDefault("data.sentinel", "unknown")
	viper.SetDefault("model.n_hidden", defaultHyper.NHidden)
	viper.SetDefault("model.n_latent", defaultHyper.NLatent)
	viper.SetDefault("model.n_layers", defaultHyper.NLayers)
	viper.SetDefault("model.dropout_rate", defaultHyper.DropoutRate)
	viper.SetDefault("model.dispersion", string(defaultHyper.Dispersion))
	viper.SetDefault("model.gene_likelihood", string(defaultHyper.GeneLikelihood))
	defaultTrain := train.NewConfig()
	viper.SetDefault("train.train_size", defaultTrain.TrainSize)
	// zero keeps the remainder of the train cut as the held-out split
	viper.SetDefault("train.test_size", defaultTrain.TestSize)
	viper.SetDefault("train.batch_size", defaultTrain.BatchSize)
	viper.SetDefault("train.kl_warmup_epochs", defaultTrain.NEpochsKLWarmup)
	viper.SetDefault("train.kl_warmup_iters", defaultTrain.NIterKLWarmup)
	viper.SetDefault("train.eval_frequency", defaultTrain.EvalFrequency)
	viper.SetDefault("train.seed", 0)
	viper.SetDefault("train.learning_rate", 1e-3)
	// zero means derive the epoch counts from the dataset size
	viper.SetDefault("train.unsupervised_epochs", 0)
	viper.SetDefault("train.semi_supervised_epochs", 0)
}

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	viper.SetConfigType("toml")
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

func (config *Config) Validate() error {
	validate := validator.New()
	return errors.Trace(validate.Struct(config))
}

// Hyperparameters converts the model section.
func (config *Config) Hyperparameters() model.Hyperparameters {
	return model.Hyperparameters{
		NHidden:        config.Model.NHidden,
		NLatent:        config.Model.NLatent,
		NLayers:        config.Model.NLayers,
		DropoutRate:    config.Model.DropoutRate,
		Dispersion:     model.Dispersion(config.Model.Dispersion),
		GeneLikelihood: model.GeneLikelihood(config.Model.GeneLikelihood),
	}
}

// TrainerConfig converts the train section.
func (config *Config) TrainerConfig() *train.Config {
	return train.NewConfig().
		SetTrainSize(config.Train.TrainSize).
		SetTestSize(config.Train.TestSize).
		SetBatchSize(config.Train.BatchSize).
		SetKLWarmupEpochs(config.Train.KLWarmupEpochs).
		SetKLWarmupIters(config.Train.KLWarmupIters).
		SetEvalFrequency(config.Train.EvalFrequency).
		SetSeed(config.Train.Seed)
}

// TrainOptions converts the schedule overrides; a zero epoch count keeps the
// heuristic.
func (config *Config) TrainOptions() []annotate.TrainOption {
	opts := []annotate.TrainOption{annotate.WithLearningRate(config.Train.LearningRate)}
	if config.Train.UnsupervisedEpochs > 0 {
		opts = append(opts, annotate.WithUnsupervisedEpochs(config.Train.UnsupervisedEpochs))
	}
	if config.Train.SemiSupervisedEpochs > 0 {
		opts = append(opts, annotate.WithSemiSupervisedEpochs(config.Train.SemiSupervisedEpochs))
	}
	return opts
}
