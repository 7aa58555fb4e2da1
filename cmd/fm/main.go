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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gorse-io/fm/cmd/version"
	"github.com/gorse-io/fm/common/log"
	"github.com/gorse-io/fm/config"
	"github.com/gorse-io/fm/model/fm"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type command struct {
	conf  *config.Config
	model *fm.FM
}

// load builds the model from the configuration file given by --config.
func (c *command) load(cmd *cobra.Command) error {
	debug, _ := cmd.Flags().GetBool("debug")
	log.SetLogger(cmd.Flags(), debug)
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return errors.Annotate(err, "failed to load config")
	}
	c.conf = conf
	c.model, err = fm.NewFM(conf.Model.ToParams())
	return errors.Trace(err)
}

// check rejects pairs outside the tables of the model.
func (c *command) check(users, items []int32) error {
	if len(users) != len(items) {
		return errors.NotValidf("%d users and %d items", len(users), len(items))
	}
	for i := range users {
		if users[i] < 0 || int(users[i]) >= c.model.NumUsers() {
			return errors.NotValidf("user %d", users[i])
		}
		if items[i] < 0 || int(items[i]) >= c.model.NumItems() {
			return errors.NotValidf("item %d", items[i])
		}
	}
	return nil
}

func newCommand() *cobra.Command {
	c := new(command)
	rootCommand := &cobra.Command{
		Use:          "fm",
		Short:        "Score user-item pairs by a factorization machine.",
		SilenceUsage: true,
	}
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")

	scoreCommand := &cobra.Command{
		Use:   "score",
		Short: "Score pairs of users and items.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			users, _ := cmd.Flags().GetInt32Slice("users")
			items, _ := cmd.Flags().GetInt32Slice("items")
			if err := c.check(users, items); err != nil {
				return err
			}
			scores, err := c.model.BatchPredict(cmd.Context(), users, items, c.conf.Predict.Jobs)
			if err != nil {
				return errors.Trace(err)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("user", "item", "score")
			for i := range scores {
				if err = table.Append([]string{
					fmt.Sprint(users[i]),
					fmt.Sprint(items[i]),
					fmt.Sprintf("%.6f", scores[i]),
				}); err != nil {
					return errors.Trace(err)
				}
			}
			return errors.Trace(table.Render())
		},
	}
	scoreCommand.Flags().Int32Slice("users", nil, "user indices")
	scoreCommand.Flags().Int32Slice("items", nil, "item indices")

	explainCommand := &cobra.Command{
		Use:   "explain",
		Short: "Break the score of a pair into its terms.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			user, _ := cmd.Flags().GetInt32("user")
			item, _ := cmd.Flags().GetInt32("item")
			if err := c.check([]int32{user}, []int32{item}); err != nil {
				return err
			}
			e := c.model.Explain(user, item)
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("term", "value")
			for _, term := range []struct {
				name  string
				value float32
			}{
				{"bias", e.Bias},
				{"user", e.UserWeight},
				{"item", e.ItemWeight},
				{"interaction", e.Interaction},
				{"score", e.Score()},
			} {
				if err := table.Append([]string{term.name, fmt.Sprintf("%.6f", term.value)}); err != nil {
					return errors.Trace(err)
				}
			}
			return errors.Trace(table.Render())
		},
	}
	explainCommand.Flags().Int32("user", 0, "user index")
	explainCommand.Flags().Int32("item", 0, "item index")

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
		},
	}

	rootCommand.AddCommand(scoreCommand, explainCommand, versionCommand)
	return rootCommand
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newCommand().ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
