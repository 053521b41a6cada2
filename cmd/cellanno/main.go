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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cellanno-io/cellanno/annotate"
	"github.com/cellanno-io/cellanno/base/log"
	"github.com/cellanno-io/cellanno/cmd/version"
	"github.com/cellanno-io/cellanno/config"
	"github.com/cellanno-io/cellanno/dataset"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "cellanno",
	Short: "Semi-supervised cell type annotation for single-cell expression data.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train an annotation model from a CSV count matrix.",
	Run: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		defer log.CloseLogger()

		configPath, _ := cmd.Flags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		modelPath, _ := cmd.Flags().GetString("model-path")
		if err := runTrain(signalContext(), conf, modelPath); err != nil {
			log.Logger().Fatal("failed to train", zap.Error(err))
		}
	},
}

var predictCommand = &cobra.Command{
	Use:   "predict",
	Short: "Annotate a CSV count matrix with a trained model.",
	Run: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		defer log.CloseLogger()

		modelPath, _ := cmd.Flags().GetString("model-path")
		countsPath, _ := cmd.Flags().GetString("counts")
		soft, _ := cmd.Flags().GetBool("soft")
		if err := runPredict(signalContext(), modelPath, countsPath, soft); err != nil {
			log.Logger().Fatal("failed to predict", zap.Error(err))
		}
	},
}

func init() {
	rootCommand.PersistentFlags().BoolP("version", "v", false, "cellanno version")
	for _, command := range []*cobra.Command{trainCommand, predictCommand} {
		log.AddFlags(command.Flags())
		command.Flags().Bool("debug", false, "use debug log mode")
		command.Flags().String("model-path", "cellanno_model.data", "path of the model file")
	}
	trainCommand.Flags().StringP("config", "c", "", "configuration file path")
	predictCommand.Flags().String("counts", "", "CSV count matrix to annotate")
	predictCommand.Flags().Bool("soft", false, "print per-label probabilities instead of argmax labels")
	rootCommand.AddCommand(trainCommand)
	rootCommand.AddCommand(predictCommand)
}

// signalContext cancels on interrupt so trainers stop between epochs.
func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctx
}

func runTrain(ctx context.Context, conf *config.Config, modelPath string) error {
	obs, err := dataset.LoadCSV(conf.Data.Counts)
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("loaded observations",
		zap.Int("n_cells", obs.Count()),
		zap.Int("n_genes", obs.Genes()),
		zap.Int("n_batches", obs.Batches()))

	annotator, err := annotate.NewAnnotator(obs, conf.Data.Sentinel,
		annotate.WithHyperparameters(conf.Hyperparameters()),
		annotate.WithConfig(conf.TrainerConfig()))
	if err != nil {
		return errors.Trace(err)
	}
	if err := annotator.Train(ctx, conf.TrainOptions()...); err != nil {
		return errors.Trace(err)
	}

	file, err := os.Create(modelPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	if err := annotator.Predictor().Marshal(file); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("saved model", zap.String("model_path", modelPath))
	return nil
}

func runPredict(ctx context.Context, modelPath, countsPath string, soft bool) error {
	file, err := os.Open(modelPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	predictor, err := annotate.UnmarshalPredictor(file)
	if err != nil {
		return errors.Trace(err)
	}
	obs, err := dataset.LoadCSV(countsPath)
	if err != nil {
		return errors.Trace(err)
	}
	indices := make([]int, obs.Count())
	for i := range indices {
		indices[i] = i
	}

	if soft {
		proba, err := predictor.PredictProba(ctx, obs, indices)
		if err != nil {
			return errors.Trace(err)
		}
		renderProbaTable(proba)
		return nil
	}
	predictions, err := predictor.Predict(ctx, obs, indices)
	if err != nil {
		return errors.Trace(err)
	}
	renderPredictions(predictions)
	return nil
}

func renderPredictions(predictions []annotate.Prediction) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Cell", "Label", "Confidence")
	for _, p := range predictions {
		_ = table.Append(p.Id, p.Label, fmt.Sprintf("%.4f", p.Confidence))
	}
	_ = table.Render()
}

func renderProbaTable(proba *annotate.ProbaTable) {
	header := []any{"Cell"}
	for _, label := range proba.Labels {
		header = append(header, label)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header(header...)
	for i, id := range proba.Ids {
		row := []any{id}
		for _, p := range proba.Rows[i] {
			row = append(row, fmt.Sprintf("%.4f", p))
		}
		_ = table.Append(row...)
	}
	_ = table.Render()
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
