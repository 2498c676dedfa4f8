// Package cli implements pickctl, the operator command line for the picking engine.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/temporal"
)

// Dialer connects pickctl to Temporal
type Dialer func(config *temporal.Config) (WorkflowClient, error)

type app struct {
	v    *viper.Viper
	dial Dialer
}

// Execute runs pickctl against the real Temporal frontend
func Execute() error {
	return NewRootCommand(DialTemporal).Execute()
}

// NewRootCommand builds the command tree. dial is used only by the workflow commands.
func NewRootCommand(dial Dialer) *cobra.Command {
	a := &app{v: viper.New(), dial: dial}

	root := &cobra.Command{
		Use:   "pickctl",
		Short: "Plan and drive warehouse picking batches",
		Long: `pickctl groups orders into picking batches, sequences pick routes and
drives the batch picking workflows running on Temporal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is ./pickctl.yaml)")
	root.PersistentFlags().Int("max", 0, "maximum orders per batch")
	_ = a.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = a.v.BindPFlag("picking.max_orders_per_batch", root.PersistentFlags().Lookup("max"))

	root.AddCommand(
		a.newBatchesCommand(),
		a.newRouteCommand(),
		a.newRunCommand(),
		a.newPickCommand(),
		a.newProgressCommand(),
	)
	return root
}

func (a *app) initConfig() error {
	defaults := temporal.DefaultConfig()
	a.v.SetDefault("picking.max_orders_per_batch", domain.DefaultMaxOrdersPerBatch)
	a.v.SetDefault("picking.pick_timeout", 4*time.Hour)
	a.v.SetDefault("temporal.host", defaults.HostPort)
	a.v.SetDefault("temporal.namespace", defaults.Namespace)
	a.v.SetDefault("temporal.task_queue", defaults.TaskQueue)

	a.v.SetEnvPrefix("PICKCTL")
	// PICKCTL_TEMPORAL_HOST for temporal.host
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
		return nil
	}

	a.v.SetConfigName("pickctl")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath(".")
	// a missing default config file is fine
	_ = a.v.ReadInConfig()
	return nil
}

func (a *app) maxOrdersPerBatch() int {
	return a.v.GetInt("picking.max_orders_per_batch")
}

func (a *app) temporalConfig() *temporal.Config {
	return &temporal.Config{
		HostPort:  a.v.GetString("temporal.host"),
		Namespace: a.v.GetString("temporal.namespace"),
		Identity:  "pickctl",
		TaskQueue: a.v.GetString("temporal.task_queue"),
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
